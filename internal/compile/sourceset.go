// Package compile holds the compilation state model: an immutable SourceSet
// whose bound declaration state is computed once and cached.
package compile

import (
	"context"
	"sync"

	"sable/internal/binder"
	"sable/internal/diag"
	"sable/internal/source"
)

// OutputKind selects what the compilation produces.
type OutputKind uint8

const (
	KindLibrary OutputKind = iota
	KindBinary
)

func (k OutputKind) String() string {
	switch k {
	case KindLibrary:
		return "library"
	case KindBinary:
		return "binary"
	}
	return "unknown"
}

// Options is the compilation configuration. It is an immutable value: to
// change options, construct a new SourceSet. There is deliberately no
// process-wide options state; every stage receives the record it needs.
type Options struct {
	Concurrent     bool
	Jobs           int
	OutputKind     OutputKind
	MaxDiagnostics int
}

// SourceSet is an immutable collection of parsed units plus references and
// options. Derived state (the bound declaration table) is memoized on the
// set; changing units or options requires a fresh set, which is what
// invalidates the cache. A SourceSet and its bound state may be shared and
// read concurrently.
type SourceSet struct {
	units []source.Unit
	refs  []source.Reference
	opts  Options

	mu    sync.Mutex
	bound *binder.Result
}

// New constructs a SourceSet. The unit and reference slices are copied so
// later caller mutations cannot taint cached state.
func New(units []source.Unit, refs []source.Reference, opts Options) *SourceSet {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	return &SourceSet{
		units: append([]source.Unit(nil), units...),
		refs:  append([]source.Reference(nil), refs...),
		opts:  opts,
	}
}

// WithOptions returns a new SourceSet over the same units and references
// with different options. The receiver and its cached state are untouched.
func (s *SourceSet) WithOptions(opts Options) *SourceSet {
	return New(s.units, s.refs, opts)
}

// WithUnits returns a new SourceSet with a different unit collection.
func (s *SourceSet) WithUnits(units []source.Unit) *SourceSet {
	return New(units, s.refs, s.opts)
}

// Units returns the ordered unit sequence. Read-only.
func (s *SourceSet) Units() []source.Unit { return s.units }

// References returns the external reference handles. Read-only.
func (s *SourceSet) References() []source.Reference { return s.refs }

// Options returns the compilation options value.
func (s *SourceSet) Options() Options { return s.opts }

// Bind computes the bound declaration state, at most once per SourceSet.
// Concurrent callers share one binding run's result. A failed run (misuse
// or cancellation) is not cached, so already-computed state stays reusable
// after a cancelled attempt elsewhere in the pipeline.
func (s *SourceSet) Bind(ctx context.Context) (*binder.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != nil {
		return s.bound, nil
	}
	res, err := binder.Bind(ctx, s.units, s.refs, binder.Options{
		Concurrent:     s.opts.Concurrent,
		Jobs:           s.opts.Jobs,
		MaxDiagnostics: s.opts.MaxDiagnostics,
	})
	if err != nil {
		return nil, err
	}
	s.bound = res
	return res, nil
}

// Diagnostics triggers binding if needed and returns the declaration
// diagnostics. This is the plain diagnostics mode: synchronous, no
// analyzer involvement. The returned bag is owned by the bound state;
// callers must not mutate it.
func (s *SourceSet) Diagnostics(ctx context.Context) (*diag.Bag, error) {
	bound, err := s.Bind(ctx)
	if err != nil {
		return nil, err
	}
	return bound.Bag, nil
}
