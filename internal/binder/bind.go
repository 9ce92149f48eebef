// Package binder resolves declared symbols across source units without
// compiling executable bodies.
package binder

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"sable/internal/diag"
	"sable/internal/source"
	"sable/internal/symbols"
)

// Options configures one binding pass.
type Options struct {
	Concurrent     bool
	Jobs           int
	MaxDiagnostics int
}

// Result is the bound declaration state: the symbol table, the per-unit
// import surface and the declaration diagnostics. It is read-only after
// Bind returns and safe to share across stages and analyzer tasks.
type Result struct {
	Units   []source.Unit
	Table   *symbols.Table
	exports map[string]map[string]bool
	imports map[source.FileID]map[string]source.Span
	Bag     *diag.Bag
}

// ModuleExports returns the export set of a referenced module.
func (r *Result) ModuleExports(module string) (map[string]bool, bool) {
	set, ok := r.exports[module]
	return set, ok
}

// UnitImports returns the modules imported by the given unit, keyed by
// module name with the import's span.
func (r *Result) UnitImports(file source.FileID) map[string]source.Span {
	return r.imports[file]
}

// builtinTypes are the type names every unit may use without declaration.
var builtinTypes = map[string]bool{
	"int":   true,
	"float": true,
	"bool":  true,
	"str":   true,
	"unit":  true,
}

// unitDecls is the per-unit intermediate produced by the collection pass.
// Indices into the shared result slice are unique per goroutine, so the
// parallel path needs no locking.
type unitDecls struct {
	imports map[string]source.Span
	types   []symbols.Symbol
	consts  []symbols.Symbol
	funcs   []symbols.Symbol
	bag     *diag.Bag
}

// Bind resolves declarations across all units. Semantic problems become
// diagnostics in the result bag; Bind itself fails only on pipeline misuse
// (malformed unit set) or cancellation. Given identical units, references
// and options the result is deterministic; the parallel and sequential
// paths produce the same diagnostic order because per-unit results are
// merged in unit order.
func Bind(ctx context.Context, units []source.Unit, refs []source.Reference, opts Options) (*Result, error) {
	for i := range units {
		if units[i].Path == "" {
			return nil, fmt.Errorf("bind: unit %d has no path (malformed source set)", i)
		}
	}
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}

	exports := make(map[string]map[string]bool, len(refs))
	for _, ref := range refs {
		set := make(map[string]bool, len(ref.Exports))
		for _, name := range ref.Exports {
			set[norm.NFC.String(name)] = true
		}
		exports[norm.NFC.String(ref.Module)] = set
	}

	collected := make([]unitDecls, len(units))
	if opts.Concurrent && len(units) > 1 {
		jobs := opts.Jobs
		if jobs <= 0 {
			jobs = runtime.GOMAXPROCS(0)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(units)))
		for i := range units {
			i := i
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				collected[i] = collectUnit(&units[i], exports, opts.MaxDiagnostics)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range units {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			collected[i] = collectUnit(&units[i], exports, opts.MaxDiagnostics)
		}
	}

	// Merge pass: single-threaded, unit order. Table insertion runs for
	// every unit before any signature check, since signatures may refer
	// to types declared in later units. Each unit's diagnostics (from
	// collection, insertion and the signature pass) are sorted into
	// source order before they reach the result bag.
	res := &Result{
		Units:   units,
		Table:   symbols.NewTable(),
		exports: exports,
		imports: make(map[source.FileID]map[string]source.Span, len(units)),
		Bag:     diag.NewBag(opts.MaxDiagnostics),
	}
	for i := range units {
		res.imports[units[i].File] = collected[i].imports
		insertAll(res.Table, collected[i].bag, collected[i].types)
		insertAll(res.Table, collected[i].bag, collected[i].consts)
		insertAll(res.Table, collected[i].bag, collected[i].funcs)
	}
	for i := range units {
		checkSignatures(res, &units[i], collected[i].bag)
		collected[i].bag.Sort()
		res.Bag.Merge(collected[i].bag)
	}
	return res, nil
}

func insertAll(table *symbols.Table, bag *diag.Bag, syms []symbols.Symbol) {
	for _, sym := range syms {
		if prev, ok := table.Insert(sym); !ok {
			orig, _ := table.Get(prev)
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.BindDuplicateSymbol,
				Message:  fmt.Sprintf("%s %q is already declared", sym.Kind, sym.Name),
				Primary:  sym.Span,
			}.WithNote(orig.Span, "previous declaration here"))
		}
	}
}

// collectUnit gathers the declarations of one unit. Runs concurrently with
// other units; touches no shared state.
func collectUnit(unit *source.Unit, exports map[string]map[string]bool, maxDiags int) unitDecls {
	out := unitDecls{
		imports: make(map[string]source.Span, len(unit.Imports)),
		bag:     diag.NewBag(maxDiags),
	}
	rep := diag.BagReporter{Bag: out.bag}

	if unit.Name == "" {
		diag.ReportError(rep, diag.BindBadUnitName, source.Span{File: unit.File}, fmt.Sprintf("unit %q declares no name", unit.Path))
	}

	for _, imp := range unit.Imports {
		module := norm.NFC.String(imp.Module)
		if _, dup := out.imports[module]; dup {
			diag.ReportWarning(rep, diag.BindDuplicateImport, imp.Span, fmt.Sprintf("module %q imported more than once", module))
			continue
		}
		out.imports[module] = imp.Span
		if _, known := exports[module]; !known {
			diag.ReportError(rep, diag.BindUnresolvedImport, imp.Span, fmt.Sprintf("imported module %q is not among the compilation references", module))
		}
	}

	for _, td := range unit.Types {
		fieldNames := make(map[string]bool, len(td.Fields))
		for _, f := range td.Fields {
			name := norm.NFC.String(f.Name)
			if fieldNames[name] {
				diag.ReportError(rep, diag.BindFieldConflict, f.Span, fmt.Sprintf("field %q declared twice in type %q", name, td.Name))
			}
			fieldNames[name] = true
		}
		out.types = append(out.types, symbols.Symbol{
			Kind:   symbols.KindType,
			Name:   norm.NFC.String(td.Name),
			Unit:   unit.File,
			Public: td.Public,
			Doc:    td.Doc,
			Span:   td.Span,
		})
	}

	for _, cd := range unit.Consts {
		out.consts = append(out.consts, symbols.Symbol{
			Kind:   symbols.KindConst,
			Name:   norm.NFC.String(cd.Name),
			Unit:   unit.File,
			Public: cd.Public,
			Doc:    cd.Doc,
			Span:   cd.Span,
		})
	}

	for _, fd := range unit.Funcs {
		seen := make(map[string]bool, len(fd.Params))
		for _, p := range fd.Params {
			name := norm.NFC.String(p)
			if seen[name] {
				diag.ReportError(rep, diag.BindDuplicateParam, fd.Span, fmt.Sprintf("parameter %q declared twice in func %q", name, fd.Name))
			}
			seen[name] = true
		}
		out.funcs = append(out.funcs, symbols.Symbol{
			Kind:   symbols.KindFunc,
			Name:   norm.NFC.String(fd.Name),
			Unit:   unit.File,
			Public: fd.Public,
			Doc:    fd.Doc,
			Span:   fd.Span,
			Arity:  len(fd.Params),
		})
	}
	return out
}

// checkSignatures validates type references in declaration signatures once
// the full table exists. Appends to the unit's own bag so the caller can
// restore source order before the merge.
func checkSignatures(res *Result, unit *source.Unit, bag *diag.Bag) {
	for _, td := range unit.Types {
		for _, f := range td.Fields {
			checkTypeRef(res, unit, bag, f.Type, f.Span)
		}
	}
	for _, cd := range unit.Consts {
		checkTypeRef(res, unit, bag, cd.Type, cd.Span)
	}
	for _, fd := range unit.Funcs {
		if fd.Result != "" {
			checkTypeRef(res, unit, bag, fd.Result, fd.Span)
		}
	}
}

func checkTypeRef(res *Result, unit *source.Unit, bag *diag.Bag, name string, span source.Span) {
	if name == "" {
		return
	}
	name = norm.NFC.String(name)
	if builtinTypes[name] {
		return
	}
	if module, member, ok := SplitQualified(name); ok {
		if _, imported := res.imports[unit.File][module]; !imported {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.BindUnresolvedType,
				Message:  fmt.Sprintf("type %q refers to module %q which is not imported by this unit", name, module),
				Primary:  span,
			})
			return
		}
		if set, known := res.exports[module]; known && !set[member] {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.BindUnresolvedType,
				Message:  fmt.Sprintf("module %q does not export %q", module, member),
				Primary:  span,
			})
		}
		return
	}
	if sym, ok := res.Table.Lookup(name); ok && sym.Kind == symbols.KindType {
		return
	}
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.BindUnresolvedType,
		Message:  fmt.Sprintf("undeclared type %q", name),
		Primary:  span,
	})
}

// SplitQualified splits "module.member" references. Plain names return ok=false.
func SplitQualified(name string) (module, member string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			if i == 0 || i == len(name)-1 {
				return "", "", false
			}
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}
