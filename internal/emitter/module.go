// Package emitter builds the in-memory module representation: compiled
// method bodies, resources and generated documentation, gated by an
// explicit build-state machine.
package emitter

import (
	"fmt"

	"sable/internal/binder"
	"sable/internal/compile"
	"sable/internal/source"
)

// State is the module build state. Transitions are one-directional:
// Open -> Finalized -> Serialized. Invoking a stage against the wrong
// state is a pipeline bug and fails fast with InvalidStateError.
type State uint8

const (
	// StateOpen accepts method bodies and resources.
	StateOpen State = iota
	// StateFinalized accepts no further content; ready to serialize.
	StateFinalized
	// StateSerialized is terminal; the image has been written at least once.
	StateSerialized
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalized:
		return "finalized"
	case StateSerialized:
		return "serialized"
	}
	return "unknown"
}

// InvalidStateError reports a stage invoked against the wrong module state.
type InvalidStateError struct {
	Op       string
	State    State
	Required State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid module state: %s requires %q module, found %q", e.Op, e.Required, e.State)
}

// Resource is a named blob embedded into the module image.
type Resource struct {
	Name string
	Data []byte
}

// CompiledMethod is one lowered function body.
type CompiledMethod struct {
	Name string
	Span source.Span
	Code []byte
	Pool []string
	// Modules lists imported modules the body references; finalize uses
	// this to compute unused-import advisories.
	Modules []string
}

// Module is the module-being-built. It has exactly one owner (the pipeline
// run that created it) and must never be shared across concurrent
// compilation attempts; repeated attempts each start from a fresh
// SourceSet and a fresh Module.
type Module struct {
	name  string
	kind  compile.OutputKind
	bound *binder.Result
	state State

	methods   []CompiledMethod
	resources []Resource
	doc       string
	used      map[source.FileID]map[string]bool
}

// NewModule opens a fresh module over bound declaration state.
func NewModule(name string, kind compile.OutputKind, bound *binder.Result) (*Module, error) {
	if bound == nil {
		return nil, fmt.Errorf("new module: bound declaration state is required")
	}
	if name == "" {
		name = "out"
	}
	return &Module{
		name:  name,
		kind:  kind,
		bound: bound,
		used:  make(map[source.FileID]map[string]bool),
	}, nil
}

func (m *Module) ensure(op string, required State) error {
	if m.state != required {
		return &InvalidStateError{Op: op, State: m.state, Required: required}
	}
	return nil
}

// State returns the current build state.
func (m *Module) State() State { return m.state }

// Name returns the module output name.
func (m *Module) Name() string { return m.name }

// Kind returns the output kind.
func (m *Module) Kind() compile.OutputKind { return m.kind }

// Bound returns the read-only bound declaration state the module was
// compiled against.
func (m *Module) Bound() *binder.Result { return m.bound }

// Methods returns the compiled bodies in source-location order.
func (m *Module) Methods() []CompiledMethod { return m.methods }

// Resources returns the attached resources.
func (m *Module) Resources() []Resource { return m.resources }

// DocText returns the generated documentation, empty if not requested.
func (m *Module) DocText() string { return m.doc }

func (m *Module) recordMethod(cm CompiledMethod, file source.FileID) {
	m.methods = append(m.methods, cm)
	for _, module := range cm.Modules {
		set := m.used[file]
		if set == nil {
			set = make(map[string]bool)
			m.used[file] = set
		}
		set[module] = true
	}
}

// ImportUsed reports whether any compiled body in the given unit referenced
// the imported module.
func (m *Module) ImportUsed(file source.FileID, module string) bool {
	return m.used[file][module]
}

// MarkSerialized transitions the module into its terminal state. The first
// successful serialization calls this; later re-serializations of the same
// finalized content are legal (repeated measurement) and keep the state.
func (m *Module) MarkSerialized() error {
	switch m.state {
	case StateFinalized, StateSerialized:
		m.state = StateSerialized
		return nil
	default:
		return &InvalidStateError{Op: "mark serialized", State: m.state, Required: StateFinalized}
	}
}
