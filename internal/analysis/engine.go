package analysis

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sable/internal/binder"
	"sable/internal/diag"
)

// Engine runs a fixed set of analyzers over bound declaration state.
// Registration order is significant: merged output lists declaration
// diagnostics first, then each analyzer's findings in registration order.
type Engine struct {
	analyzers []Analyzer
	jobs      int
}

// NewEngine builds an engine. jobs <= 0 means GOMAXPROCS.
func NewEngine(jobs int, analyzers ...Analyzer) *Engine {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &Engine{analyzers: analyzers, jobs: jobs}
}

// Analyzers returns the registered analyzers in order.
func (e *Engine) Analyzers() []Analyzer { return e.analyzers }

// Run executes all analyzers against the bound state and returns the merged
// diagnostic set: declaration diagnostics first, then analyzer diagnostics
// grouped by registration order (within a group, unit order). Duplicate
// suppression between groups is the analyzers' concern, not the engine's.
//
// Run is the pipeline's one suspending stage: it blocks until every
// analyzer completes or the context is cancelled. On cancellation it
// returns a wrapped ctx error and no bag; a partial result is never
// presented as a complete one. The bound state is untouched and remains
// reusable after a cancelled run.
func (e *Engine) Run(ctx context.Context, bound *binder.Result, cfg Config) (*diag.Bag, error) {
	if bound == nil {
		return nil, fmt.Errorf("analysis: bound declaration state is required")
	}

	// Result slots are index-addressed; no goroutine shares a slot.
	whole := make([][]diag.Diagnostic, len(e.analyzers))
	byUnit := make([][][]diag.Diagnostic, len(e.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)

	for i, a := range e.analyzers {
		i, a := i, a
		ua, perUnit := a.(UnitAnalyzer)
		if perUnit {
			// Analyzer declared per-unit analysis safe: fan out across units.
			byUnit[i] = make([][]diag.Diagnostic, len(bound.Units))
			for j := range bound.Units {
				j := j
				g.Go(func() error {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
					ds, err := ua.AnalyzeUnit(gctx, bound, &bound.Units[j], cfg)
					if err != nil {
						return fmt.Errorf("analyzer %q: %w", ua.Name(), err)
					}
					byUnit[i][j] = ds
					return nil
				})
			}
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			ds, err := a.Analyze(gctx, bound, cfg)
			if err != nil {
				return fmt.Errorf("analyzer %q: %w", a.Name(), err)
			}
			whole[i] = ds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis did not complete: %w", err)
	}

	total := len(bound.Bag.Items())
	for i := range e.analyzers {
		for _, ds := range byUnit[i] {
			whole[i] = append(whole[i], ds...)
		}
		total += len(whole[i])
	}

	merged := diag.NewBag(total)
	merged.Merge(bound.Bag)
	for _, ds := range whole {
		for _, d := range ds {
			merged.Add(d)
		}
	}
	return merged, nil
}
