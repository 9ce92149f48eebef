package analysis

import (
	"context"
	"fmt"
	"unicode"

	"sable/internal/binder"
	"sable/internal/diag"
	"sable/internal/source"
)

// Naming checks that declared names follow lower_snake style. Per-unit
// analysis is safe: each unit's declarations are inspected independently.
type Naming struct{}

func (Naming) Name() string { return "naming" }

func (n Naming) Analyze(ctx context.Context, bound *binder.Result, cfg Config) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for i := range bound.Units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := n.AnalyzeUnit(ctx, bound, &bound.Units[i], cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

func (Naming) AnalyzeUnit(_ context.Context, _ *binder.Result, unit *source.Unit, cfg Config) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	check := func(kind, name string, span source.Span) {
		if nameStyleOK(name, cfg.AllowCamel) {
			return
		}
		out = append(out, diag.Diagnostic{
			Severity: diag.SevWarning,
			Code:     diag.AnalysisNamingStyle,
			Message:  fmt.Sprintf("%s %q should be lower_snake style", kind, name),
			Primary:  span,
		})
	}
	for _, td := range unit.Types {
		check("type", td.Name, td.Span)
		for _, f := range td.Fields {
			check("field", f.Name, f.Span)
		}
	}
	for _, cd := range unit.Consts {
		check("const", cd.Name, cd.Span)
	}
	for _, fd := range unit.Funcs {
		check("func", fd.Name, fd.Span)
	}
	return out, nil
}

func nameStyleOK(name string, allowCamel bool) bool {
	if name == "" {
		return true // binding reports empties, not style
	}
	for i, r := range name {
		if unicode.IsUpper(r) {
			if allowCamel && i > 0 {
				continue
			}
			return false
		}
	}
	return true
}
