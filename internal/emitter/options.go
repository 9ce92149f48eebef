package emitter

import "fmt"

// DebugMode selects how debug information is emitted.
type DebugMode uint8

const (
	// DebugNone omits debug information entirely.
	DebugNone DebugMode = iota
	// DebugEmbedded embeds debug information into the primary image.
	DebugEmbedded
	// DebugSeparate writes debug information to its own stream.
	DebugSeparate
)

func (m DebugMode) String() string {
	switch m {
	case DebugNone:
		return "none"
	case DebugEmbedded:
		return "embedded"
	case DebugSeparate:
		return "separate"
	}
	return "unknown"
}

// ParseDebugMode converts a flag value into a DebugMode.
func ParseDebugMode(s string) (DebugMode, error) {
	switch s {
	case "none", "":
		return DebugNone, nil
	case "embedded":
		return DebugEmbedded, nil
	case "separate":
		return DebugSeparate, nil
	}
	return DebugNone, fmt.Errorf("unsupported debug-info mode: %s (supported: none, embedded, separate)", s)
}

// EmitOptions configures method compilation and serialization. Immutable
// value; a new bundle is built per pipeline run, never shared globals.
type EmitOptions struct {
	IncludePrivate bool
	DebugMode      DebugMode
	MetadataOnly   bool
	OutputName     string
	Coverage       bool
	Docs           bool

	// Concurrency is inherited from the source set options by the pipeline.
	Concurrent bool
	Jobs       int
}
