// Package project locates and decodes the sable.toml manifest.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"sable/internal/analysis"
	"sable/internal/compile"
	"sable/internal/emitter"
	"sable/internal/source"
	"sable/internal/unitfile"
)

// ManifestName is the file name of the project manifest.
const ManifestName = "sable.toml"

var (
	// ErrPackageSectionMissing indicates that [package] is missing.
	ErrPackageSectionMissing = errors.New("missing [package]")
	// ErrPackageNameMissing indicates that [package].name is missing.
	ErrPackageNameMissing = errors.New("missing [package].name")
)

// PackageSection is the [package] block.
type PackageSection struct {
	Name string `toml:"name"`
	// Kind is "library" (default) or "binary".
	Kind string `toml:"kind"`
	// Units lists directories scanned for *.unit.toml documents,
	// relative to the manifest directory.
	Units []string `toml:"units"`
}

// ReferenceSection is one [[references]] entry: an external module whose
// exports may be imported by units.
type ReferenceSection struct {
	Module  string   `toml:"module"`
	Exports []string `toml:"exports"`
}

// AnalysisSection is the [analysis] block.
type AnalysisSection struct {
	Enabled []string        `toml:"enabled"`
	Config  analysis.Config `toml:"config"`
}

// EmitSection is the [emit] block of defaults for the emit command.
type EmitSection struct {
	Debug          string `toml:"debug"`
	IncludePrivate bool   `toml:"include_private"`
	MetadataOnly   bool   `toml:"metadata_only"`
	Coverage       bool   `toml:"coverage"`
	Docs           bool   `toml:"docs"`
	Metadata       bool   `toml:"metadata"`
	Output         string `toml:"output"`
}

// Manifest is a decoded sable.toml.
type Manifest struct {
	Package    PackageSection     `toml:"package"`
	References []ReferenceSection `toml:"references"`
	Analysis   AnalysisSection    `toml:"analysis"`
	Emit       EmitSection        `toml:"emit"`

	// Dir is the directory containing the manifest.
	Dir string `toml:"-"`
}

// FindManifest walks up from startDir to locate sable.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindRoot returns the directory containing sable.toml, if any.
func FindRoot(startDir string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return "", ok, err
	}
	return filepath.Dir(manifestPath), true, nil
}

// Load decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	if m.Package.Name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageNameMissing)
	}
	switch m.Package.Kind {
	case "", "library", "binary":
	default:
		return nil, fmt.Errorf("%s: unknown package kind %q", path, m.Package.Kind)
	}
	m.Dir = filepath.Dir(path)
	return &m, nil
}

// OutputKind maps the manifest kind onto the compile option.
func (m *Manifest) OutputKind() compile.OutputKind {
	if m.Package.Kind == "binary" {
		return compile.KindBinary
	}
	return compile.KindLibrary
}

// UnitPaths scans the configured unit directories (default: the manifest
// directory) and returns every unit document, sorted.
func (m *Manifest) UnitPaths() ([]string, error) {
	dirs := m.Package.Units
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	var paths []string
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(m.Dir, dir)
		}
		files, err := unitfile.ListDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan units in %q: %w", dir, err)
		}
		paths = append(paths, files...)
	}
	return paths, nil
}

// SourceReferences converts the [[references]] entries.
func (m *Manifest) SourceReferences() []source.Reference {
	refs := make([]source.Reference, 0, len(m.References))
	for _, r := range m.References {
		refs = append(refs, source.Reference{Module: r.Module, Exports: r.Exports})
	}
	return refs
}

// Analyzers selects the enabled analyzers in canonical order.
func (m *Manifest) Analyzers() []analysis.Analyzer {
	if len(m.Analysis.Enabled) == 0 {
		return nil
	}
	return analysis.Select(m.Analysis.Enabled)
}

// EmitOptions builds emit defaults from the [emit] section. Command-line
// flags override individual fields afterwards.
func (m *Manifest) EmitOptions() (emitter.EmitOptions, error) {
	mode := emitter.DebugNone
	if m.Emit.Debug != "" {
		parsed, err := emitter.ParseDebugMode(m.Emit.Debug)
		if err != nil {
			return emitter.EmitOptions{}, err
		}
		mode = parsed
	}
	name := m.Emit.Output
	if name == "" {
		name = m.Package.Name
	}
	return emitter.EmitOptions{
		IncludePrivate: m.Emit.IncludePrivate,
		DebugMode:      mode,
		MetadataOnly:   m.Emit.MetadataOnly,
		Coverage:       m.Emit.Coverage,
		Docs:           m.Emit.Docs,
		OutputName:     name,
	}, nil
}

// WriteDefault scaffolds a fresh manifest for name in dir. It refuses to
// overwrite an existing manifest.
func WriteDefault(dir, name string) (string, error) {
	path := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat %q: %w", path, err)
	}
	content := fmt.Sprintf(`[package]
name = %q
kind = "library"
units = ["src"]

[analysis]
enabled = ["naming", "doc-comment"]

[emit]
debug = "none"
`, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %q: %w", path, err)
	}
	return path, nil
}
