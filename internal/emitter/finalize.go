package emitter

import (
	"fmt"
	"sort"
	"strings"

	"sable/internal/diag"
	"sable/internal/source"
)

// Finalize adds the module's non-code content and seals it, in this order:
// attach resources, generate documentation (if requested), record
// unused-import advisories, transition Open -> Finalized. Each step may
// append diagnostics to bag but never reverts a prior step.
//
// Finalize is deliberately not idempotent: its steps have observable side
// effects, so a second call fails with InvalidStateError instead of
// silently succeeding.
func Finalize(mod *Module, resources []Resource, opts EmitOptions, bag *diag.Bag) error {
	if mod == nil {
		return fmt.Errorf("finalize: module is required")
	}
	if err := mod.ensure("finalize", StateOpen); err != nil {
		return err
	}

	// 1. Resources. No-op if none supplied.
	seen := make(map[string]bool, len(resources))
	for _, r := range resources {
		if seen[r.Name] {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevWarning,
				Code:     diag.EmitDuplicateResource,
				Message:  fmt.Sprintf("resource %q supplied more than once; keeping the first", r.Name),
			})
			continue
		}
		seen[r.Name] = true
		mod.resources = append(mod.resources, r)
	}

	// 2. Documentation. No-op if not requested.
	if opts.Docs {
		mod.doc = generateDocs(mod, opts)
	}

	// 3. Unused-import advisories against the used-symbol set collected
	// during method compilation.
	appendUnusedImports(mod, bag)

	// 4. Seal.
	mod.state = StateFinalized
	return nil
}

func appendUnusedImports(mod *Module, bag *diag.Bag) {
	for i := range mod.bound.Units {
		unit := &mod.bound.Units[i]
		imports := mod.bound.UnitImports(unit.File)
		modules := make([]string, 0, len(imports))
		for module := range imports {
			modules = append(modules, module)
		}
		sort.Slice(modules, func(a, b int) bool {
			return imports[modules[a]].Before(imports[modules[b]])
		})
		for _, module := range modules {
			if mod.ImportUsed(unit.File, module) {
				continue
			}
			bag.Add(diag.Diagnostic{
				Severity: diag.SevWarning,
				Code:     diag.EmitUnusedImport,
				Message:  fmt.Sprintf("imported module %q is never used", module),
				Primary:  imports[module],
			})
		}
	}
}

// generateDocs renders the module's declaration documentation as markdown.
// Output is deterministic: units in source order, declarations in source
// order within each unit.
func generateDocs(mod *Module, opts EmitOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# module %s\n", mod.name)
	for i := range mod.bound.Units {
		unit := &mod.bound.Units[i]
		if !unitHasVisibleDecls(unit, opts.IncludePrivate) {
			continue
		}
		fmt.Fprintf(&b, "\n## unit %s\n", unit.Name)
		for _, td := range unit.Types {
			if !td.Public && !opts.IncludePrivate {
				continue
			}
			fmt.Fprintf(&b, "\n### type %s\n", td.Name)
			writeDocText(&b, td.Doc)
			for _, f := range td.Fields {
				fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Type)
			}
		}
		for _, cd := range unit.Consts {
			if !cd.Public && !opts.IncludePrivate {
				continue
			}
			fmt.Fprintf(&b, "\n### const %s: %s\n", cd.Name, cd.Type)
			writeDocText(&b, cd.Doc)
		}
		for _, fd := range unit.Funcs {
			if !fd.Public && !opts.IncludePrivate {
				continue
			}
			fmt.Fprintf(&b, "\n### func %s(%s)%s\n", fd.Name, strings.Join(fd.Params, ", "), resultSuffix(fd))
			writeDocText(&b, fd.Doc)
		}
	}
	return b.String()
}

func unitHasVisibleDecls(unit *source.Unit, includePrivate bool) bool {
	if includePrivate {
		return len(unit.Types)+len(unit.Consts)+len(unit.Funcs) > 0
	}
	for _, td := range unit.Types {
		if td.Public {
			return true
		}
	}
	for _, cd := range unit.Consts {
		if cd.Public {
			return true
		}
	}
	for _, fd := range unit.Funcs {
		if fd.Public {
			return true
		}
	}
	return false
}

func writeDocText(b *strings.Builder, doc string) {
	if doc == "" {
		return
	}
	b.WriteString(doc)
	if !strings.HasSuffix(doc, "\n") {
		b.WriteString("\n")
	}
}

func resultSuffix(fd source.FuncDecl) string {
	if fd.Result == "" {
		return ""
	}
	return " -> " + fd.Result
}
