// Package objfile serializes a finalized module to binary streams.
//
// Streams are msgpack-encoded payload structs behind a fixed header
// (magic + schema version). Struct encoding is field-order deterministic,
// so serializing an unchanged module twice yields byte-identical output.
package objfile

import (
	"sable/internal/source"
)

// Magic leads every sable binary stream.
const Magic = "SBLM"

// Schema is the payload format version. Bump when any payload changes.
const Schema uint16 = 1

// StreamKind names an output stream in a SerializationResult.
type StreamKind string

const (
	StreamImage    StreamKind = "image"
	StreamMetadata StreamKind = "metadata"
	StreamDebug    StreamKind = "debug"
	StreamDocs     StreamKind = "docs"
)

// Header opens every stream.
type Header struct {
	Magic  string
	Schema uint16
	Kind   string // StreamKind
}

// TypeRecord is a serialized type declaration.
type TypeRecord struct {
	Name   string
	Public bool
	Doc    string
	Fields []FieldRecord
}

// FieldRecord is one field of a TypeRecord.
type FieldRecord struct {
	Name string
	Type string
}

// ConstRecord is a serialized constant declaration.
type ConstRecord struct {
	Name   string
	Type   string
	Value  string
	Public bool
	Doc    string
}

// FuncRecord is a serialized function signature.
type FuncRecord struct {
	Name   string
	Params []string
	Result string
	Public bool
	Doc    string
}

// MethodRecord is one compiled body.
type MethodRecord struct {
	Name string
	Code []byte
	Pool []string
}

// ResourceRecord is one embedded resource.
type ResourceRecord struct {
	Name string
	Data []byte
}

// UnitDecls groups the declaration records of one unit.
type UnitDecls struct {
	Unit   string
	Types  []TypeRecord
	Consts []ConstRecord
	Funcs  []FuncRecord
}

// ImagePayload is the primary (or metadata-only) stream body.
type ImagePayload struct {
	Name         string
	OutputKind   string
	MetadataOnly bool
	Units        []UnitDecls
	Methods      []MethodRecord    // empty when MetadataOnly
	Resources    []ResourceRecord  // empty when MetadataOnly
	Debug        *DebugPayload     // set only for embedded debug mode
}

// DebugPayload maps compiled methods back to source locations.
type DebugPayload struct {
	Files       []FileRecord
	MethodSpans []MethodSpanRecord
}

// FileRecord names one source unit file.
type FileRecord struct {
	File source.FileID
	Path string
}

// MethodSpanRecord locates one compiled method.
type MethodSpanRecord struct {
	Name  string
	File  source.FileID
	Start uint32
	End   uint32
}
