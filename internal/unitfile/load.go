// Package unitfile loads pre-parsed source units from disk.
//
// The front end (lexer/parser) is an external collaborator; it hands the
// pipeline already-parsed trees interchanged as *.unit.toml documents.
// Loading assigns FileIDs in sorted path order and synthesizes spans from
// declaration order, so diagnostics sort deterministically.
package unitfile

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"sable/internal/diag"
	"sable/internal/source"
)

// UnitSuffix is the file suffix of pre-parsed unit documents.
const UnitSuffix = ".unit.toml"

type unitDoc struct {
	Unit    string      `toml:"unit"`
	Imports []importDoc `toml:"imports"`
	Types   []typeDoc   `toml:"types"`
	Consts  []constDoc  `toml:"consts"`
	Funcs   []funcDoc   `toml:"funcs"`
}

type importDoc struct {
	Module string `toml:"module"`
}

type typeDoc struct {
	Name   string     `toml:"name"`
	Public bool       `toml:"public"`
	Doc    string     `toml:"doc"`
	Fields []fieldDoc `toml:"fields"`
}

type fieldDoc struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type constDoc struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Value  string `toml:"value"`
	Public bool   `toml:"public"`
	Doc    string `toml:"doc"`
}

type funcDoc struct {
	Name   string     `toml:"name"`
	Params []string   `toml:"params"`
	Result string     `toml:"result"`
	Public bool       `toml:"public"`
	Doc    string     `toml:"doc"`
	Body   []instrDoc `toml:"body"`
}

type instrDoc struct {
	Op   string   `toml:"op"`
	Args []string `toml:"args"`
}

// Result is the outcome of loading one unit file. A load failure leaves
// Unit zero-valued and records an I/O diagnostic in Bag.
type Result struct {
	Path string
	Unit source.Unit
	Bag  *diag.Bag
}

// ListDir returns the sorted list of unit files under dir.
func ListDir(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, UnitSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadPaths decodes the given unit files, in parallel when jobs allows.
// FileIDs are assigned by position in the (sorted) path list, starting at 1.
// I/O and decode failures become diagnostics in the per-file bag; LoadPaths
// itself fails only on cancellation.
func LoadPaths(ctx context.Context, paths []string, maxDiagnostics, jobs int) ([]Result, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(sorted), 1)))
	for i, path := range sorted {
		i, path := i, path
		fileID := source.FileID(i + 1)
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = loadFile(path, fileID, maxDiagnostics)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Units extracts the successfully loaded units and the merged I/O bag.
func Units(results []Result, maxDiagnostics int) ([]source.Unit, *diag.Bag) {
	units := make([]source.Unit, 0, len(results))
	bag := diag.NewBag(maxDiagnostics)
	for _, r := range results {
		bag.Merge(r.Bag)
		if r.Unit.Path != "" {
			units = append(units, r.Unit)
		}
	}
	return units, bag
}

func loadFile(path string, fileID source.FileID, maxDiagnostics int) Result {
	res := Result{Path: path, Bag: diag.NewBag(maxDiagnostics)}

	var doc unitDoc
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		res.Bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.IOLoadUnitError,
			Message:  fmt.Sprintf("failed to load unit %q: %v", path, err),
		})
		return res
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		res.Bag.Add(diag.Diagnostic{
			Severity: diag.SevWarning,
			Code:     diag.IOBadUnitFile,
			Message:  fmt.Sprintf("unit %q has unknown keys: %v", path, undecoded),
		})
	}

	res.Unit = buildUnit(path, fileID, &doc)
	return res
}

// buildUnit converts a decoded document into a source.Unit, assigning
// synthetic spans in declaration order.
func buildUnit(path string, fileID source.FileID, doc *unitDoc) source.Unit {
	unit := source.Unit{Path: path, File: fileID, Name: doc.Unit}
	next := uint32(0)
	span := func() source.Span {
		s := source.Span{File: fileID, Start: next, End: next + 1}
		next++
		return s
	}

	for _, imp := range doc.Imports {
		unit.Imports = append(unit.Imports, source.Import{Module: imp.Module, Span: span()})
	}
	for _, td := range doc.Types {
		decl := source.TypeDecl{
			Name: td.Name, Public: td.Public, Doc: td.Doc, Span: span(),
		}
		for _, f := range td.Fields {
			decl.Fields = append(decl.Fields, source.Field{Name: f.Name, Type: f.Type, Span: span()})
		}
		unit.Types = append(unit.Types, decl)
	}
	for _, cd := range doc.Consts {
		unit.Consts = append(unit.Consts, source.ConstDecl{
			Name: cd.Name, Type: cd.Type, Value: cd.Value,
			Public: cd.Public, Doc: cd.Doc, Span: span(),
		})
	}
	for _, fd := range doc.Funcs {
		decl := source.FuncDecl{
			Name: fd.Name, Params: fd.Params, Result: fd.Result,
			Public: fd.Public, Doc: fd.Doc, Span: span(),
		}
		for _, ins := range fd.Body {
			decl.Body = append(decl.Body, source.Instr{Op: ins.Op, Args: ins.Args, Span: span()})
		}
		unit.Funcs = append(unit.Funcs, decl)
	}
	return unit
}
