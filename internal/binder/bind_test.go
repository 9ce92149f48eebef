package binder

import (
	"context"
	"testing"

	"sable/internal/diag"
	"sable/internal/source"
	"sable/internal/symbols"
)

func span(file source.FileID, start uint32) source.Span {
	return source.Span{File: file, Start: start, End: start + 1}
}

func twoUnits() []source.Unit {
	return []source.Unit{
		{
			Path: "a.unit.toml", File: 1, Name: "alpha",
			Imports: []source.Import{{Module: "math", Span: span(1, 0)}},
			Types: []source.TypeDecl{{
				Name: "point", Public: true,
				Fields: []source.Field{{Name: "x", Type: "int", Span: span(1, 2)}},
				Span:   span(1, 1),
			}},
			Funcs: []source.FuncDecl{{
				Name: "dist", Params: []string{"a", "b"}, Result: "int", Public: true,
				Body: []source.Instr{{Op: "load", Args: []string{"a"}, Span: span(1, 4)}},
				Span: span(1, 3),
			}},
		},
		{
			Path: "b.unit.toml", File: 2, Name: "beta",
			Consts: []source.ConstDecl{{Name: "origin", Type: "point", Span: span(2, 0)}},
		},
	}
}

func mathRef() []source.Reference {
	return []source.Reference{{Module: "math", Exports: []string{"sqrt", "pow"}}}
}

func TestBindBuildsTable(t *testing.T) {
	res, err := Bind(context.Background(), twoUnits(), mathRef(), Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", res.Bag.Items())
	}
	if res.Table.Len() != 3 {
		t.Fatalf("expected 3 symbols, got %d", res.Table.Len())
	}
	sym, ok := res.Table.Lookup("dist")
	if !ok || sym.Kind != symbols.KindFunc || sym.Arity != 2 {
		t.Fatalf("dist bound incorrectly: %+v", sym)
	}
}

func TestBindReportsDuplicateAcrossUnits(t *testing.T) {
	units := twoUnits()
	units[1].Funcs = []source.FuncDecl{{Name: "dist", Span: span(2, 5)}}
	res, err := Bind(context.Background(), units, mathRef(), Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.BindDuplicateSymbol {
			found = true
			if len(d.Notes) == 0 {
				t.Fatalf("duplicate diagnostic should note the original declaration")
			}
		}
	}
	if !found {
		t.Fatalf("expected a duplicate-symbol diagnostic, got %+v", res.Bag.Items())
	}
}

func TestBindReportsUnresolvedImport(t *testing.T) {
	units := twoUnits()
	res, err := Bind(context.Background(), units, nil, Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if !hasCode(res.Bag, diag.BindUnresolvedImport) {
		t.Fatalf("expected unresolved-import diagnostic, got %+v", res.Bag.Items())
	}
}

func TestBindReportsUnresolvedType(t *testing.T) {
	units := twoUnits()
	units[1].Consts[0].Type = "vector"
	res, err := Bind(context.Background(), units, mathRef(), Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if !hasCode(res.Bag, diag.BindUnresolvedType) {
		t.Fatalf("expected unresolved-type diagnostic, got %+v", res.Bag.Items())
	}
}

func TestBindNormalizesIdentifiers(t *testing.T) {
	// Same name in composed and decomposed form must collide.
	units := []source.Unit{
		{
			Path: "a.unit.toml", File: 1, Name: "alpha",
			Consts: []source.ConstDecl{
				{Name: "café", Type: "int", Span: span(1, 0)},
				{Name: "café", Type: "int", Span: span(1, 1)},
			},
		},
	}
	res, err := Bind(context.Background(), units, nil, Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if !hasCode(res.Bag, diag.BindDuplicateSymbol) {
		t.Fatalf("NFC-equal names must be one symbol, got %+v", res.Bag.Items())
	}
}

func TestBindDiagnosticsInSourceOrderWithinUnit(t *testing.T) {
	// The signature pass runs after collection, but its findings must
	// still land between the collection findings in span order.
	units := []source.Unit{{
		Path: "a.unit.toml", File: 1, Name: "alpha",
		Consts: []source.ConstDecl{{Name: "origin", Type: "vector", Span: span(1, 0)}},
		Funcs: []source.FuncDecl{{
			Name: "twice", Params: []string{"x", "x"}, Span: span(1, 1),
		}},
	}}
	res, err := Bind(context.Background(), units, nil, Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	items := res.Bag.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", items)
	}
	if items[0].Code != diag.BindUnresolvedType || items[1].Code != diag.BindDuplicateParam {
		t.Fatalf("diagnostics not in source order: %+v", items)
	}
	if items[0].Primary.Start > items[1].Primary.Start {
		t.Fatalf("spans out of order: %+v", items)
	}
}

func TestBindSerialAndParallelAgree(t *testing.T) {
	units := twoUnits()
	units[1].Consts[0].Type = "vector" // inject one diagnostic

	serial, err := Bind(context.Background(), units, mathRef(), Options{})
	if err != nil {
		t.Fatalf("serial bind failed: %v", err)
	}
	parallel, err := Bind(context.Background(), units, mathRef(), Options{Concurrent: true, Jobs: 4})
	if err != nil {
		t.Fatalf("parallel bind failed: %v", err)
	}
	si, pi := serial.Bag.Items(), parallel.Bag.Items()
	if len(si) != len(pi) {
		t.Fatalf("diagnostic counts differ: %d vs %d", len(si), len(pi))
	}
	for i := range si {
		if si[i].Code != pi[i].Code || si[i].Primary != pi[i].Primary {
			t.Fatalf("diagnostic %d differs: %+v vs %+v", i, si[i], pi[i])
		}
	}
	if serial.Table.Len() != parallel.Table.Len() {
		t.Fatalf("table sizes differ")
	}
}

func TestBindRejectsMalformedUnit(t *testing.T) {
	units := []source.Unit{{Name: "nameless"}}
	if _, err := Bind(context.Background(), units, nil, Options{}); err == nil {
		t.Fatalf("unit without path must be a fatal error, not a diagnostic")
	}
}

func TestBindHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Bind(ctx, twoUnits(), mathRef(), Options{Concurrent: true}); err == nil {
		t.Fatalf("cancelled bind must fail")
	}
}

func hasCode(b *diag.Bag, code diag.Code) bool {
	for _, d := range b.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
