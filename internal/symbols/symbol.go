// Package symbols holds the declaration table produced by binding.
// The table is immutable after Bind returns and safe for concurrent reads.
package symbols

import (
	"sable/internal/source"
)

// SymbolID indexes into a Table. The zero value means "no symbol".
type SymbolID uint32

const NoSymbolID SymbolID = 0

// Kind classifies a declared symbol.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindConst
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindConst:
		return "const"
	case KindFunc:
		return "func"
	}
	return "unknown"
}

// Symbol is one bound declaration. Name is NFC-normalized.
type Symbol struct {
	ID     SymbolID
	Kind   Kind
	Name   string
	Unit   source.FileID
	Public bool
	Doc    string
	Span   source.Span
	Arity  int // parameter count, funcs only
}
