package symbols

import "sort"

// Table maps normalized names to symbols. Insertion happens during the
// single-threaded merge step of binding; afterwards the table is read-only.
type Table struct {
	syms   []Symbol // index 0 unused so SymbolID 0 stays "no symbol"
	byName map[string]SymbolID
}

func NewTable() *Table {
	return &Table{
		syms:   make([]Symbol, 1),
		byName: make(map[string]SymbolID),
	}
}

// Insert adds a symbol under its name. If the name is already taken, Insert
// returns the existing symbol's ID and false; the caller reports the
// duplicate as a diagnostic.
func (t *Table) Insert(sym Symbol) (SymbolID, bool) {
	if existing, ok := t.byName[sym.Name]; ok {
		return existing, false
	}
	id := SymbolID(len(t.syms))
	sym.ID = id
	t.syms = append(t.syms, sym)
	t.byName[sym.Name] = id
	return id, true
}

// Lookup finds a symbol by normalized name.
func (t *Table) Lookup(name string) (Symbol, bool) {
	id, ok := t.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return t.syms[id], true
}

// Get returns the symbol with the given ID.
func (t *Table) Get(id SymbolID) (Symbol, bool) {
	if id == NoSymbolID || int(id) >= len(t.syms) {
		return Symbol{}, false
	}
	return t.syms[id], true
}

// Len returns the number of symbols in the table.
func (t *Table) Len() int {
	return len(t.syms) - 1
}

// Names returns all symbol names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Symbols returns all symbols ordered by ID (insertion order).
func (t *Table) Symbols() []Symbol {
	return t.syms[1:]
}
