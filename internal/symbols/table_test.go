package symbols

import "testing"

func TestInsertAndLookup(t *testing.T) {
	tbl := NewTable()
	id, ok := tbl.Insert(Symbol{Kind: KindFunc, Name: "dist", Arity: 2})
	if !ok || id == NoSymbolID {
		t.Fatalf("insert failed")
	}
	sym, ok := tbl.Lookup("dist")
	if !ok {
		t.Fatalf("lookup failed")
	}
	if sym.ID != id || sym.Arity != 2 {
		t.Fatalf("unexpected symbol %+v", sym)
	}
}

func TestInsertDuplicateReturnsOriginal(t *testing.T) {
	tbl := NewTable()
	first, _ := tbl.Insert(Symbol{Kind: KindType, Name: "point"})
	second, ok := tbl.Insert(Symbol{Kind: KindConst, Name: "point"})
	if ok {
		t.Fatalf("duplicate insert must fail")
	}
	if second != first {
		t.Fatalf("duplicate insert must return the original ID")
	}
	if tbl.Len() != 1 {
		t.Fatalf("table must keep one symbol, got %d", tbl.Len())
	}
}

func TestNamesSorted(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(Symbol{Kind: KindFunc, Name: "zeta"})
	tbl.Insert(Symbol{Kind: KindFunc, Name: "alpha"})
	names := tbl.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("unexpected names %v", names)
	}
}
