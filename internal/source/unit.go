// Package source defines the parsed-unit boundary of the pipeline.
//
// Units arrive already parsed: the front end (lexer/parser) is an external
// collaborator. A Unit carries declarations and instruction-list function
// bodies; the pipeline binds, checks, compiles and serializes them but never
// looks at source text.
package source

// Import names an external module a unit depends on.
type Import struct {
	Module string
	Span   Span
}

// Field is one named field of a type declaration.
type Field struct {
	Name string
	Type string
	Span Span
}

// TypeDecl declares a record type.
type TypeDecl struct {
	Name   string
	Public bool
	Doc    string
	Fields []Field
	Span   Span
}

// ConstDecl declares a typed constant.
type ConstDecl struct {
	Name   string
	Type   string
	Value  string
	Public bool
	Doc    string
	Span   Span
}

// Instr is one instruction of a function body in the neutral pre-lowering
// form produced by the front end.
type Instr struct {
	Op   string
	Args []string
	Span Span
}

// FuncDecl declares a function together with its body.
type FuncDecl struct {
	Name   string
	Params []string
	Result string // empty for no result
	Public bool
	Doc    string
	Body   []Instr
	Span   Span
}

// Unit is one parsed source unit. Units are immutable once constructed and
// may be read concurrently by any number of stages.
type Unit struct {
	Path    string
	File    FileID
	Name    string
	Imports []Import
	Types   []TypeDecl
	Consts  []ConstDecl
	Funcs   []FuncDecl
}

// Reference is an external metadata handle: the export surface of an
// already-compiled module that units may import.
type Reference struct {
	Module  string
	Exports []string
}
