package analysis

import (
	"context"
	"fmt"

	"sable/internal/binder"
	"sable/internal/diag"
	"sable/internal/source"
)

// DocComment flags declarations without documentation text. By default only
// public declarations are checked; Config.DocPrivate widens the net.
type DocComment struct{}

func (DocComment) Name() string { return "doccomment" }

func (d DocComment) Analyze(ctx context.Context, bound *binder.Result, cfg Config) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for i := range bound.Units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := d.AnalyzeUnit(ctx, bound, &bound.Units[i], cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

func (DocComment) AnalyzeUnit(_ context.Context, _ *binder.Result, unit *source.Unit, cfg Config) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	flag := func(kind, name, doc string, public bool, span source.Span) {
		if doc != "" {
			return
		}
		if !public && !cfg.DocPrivate {
			return
		}
		out = append(out, diag.Diagnostic{
			Severity: diag.SevInfo,
			Code:     diag.AnalysisMissingDoc,
			Message:  fmt.Sprintf("public %s %q has no documentation", kind, name),
			Primary:  span,
		})
	}
	for _, td := range unit.Types {
		flag("type", td.Name, td.Doc, td.Public, td.Span)
	}
	for _, cd := range unit.Consts {
		flag("const", cd.Name, cd.Doc, cd.Public, cd.Span)
	}
	for _, fd := range unit.Funcs {
		flag("func", fd.Name, fd.Doc, fd.Public, fd.Span)
	}
	return out, nil
}
