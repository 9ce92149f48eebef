// Package buildpipeline orchestrates the compilation pipeline: unit
// loading, declaration binding, diagnostics (optionally analyzer-augmented),
// method compilation, module finalization and binary serialization.
package buildpipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sable/internal/analysis"
	"sable/internal/compile"
	"sable/internal/diag"
	"sable/internal/observ"
	"sable/internal/source"
	"sable/internal/unitfile"
)

// CheckRequest configures a diagnostics-only run.
type CheckRequest struct {
	// Units, if set, skips the load stage. Otherwise UnitPaths are loaded.
	Units     []source.Unit
	UnitPaths []string
	Refs      []source.Reference
	Options   compile.Options

	// Analyzers, when non-empty, switches diagnostics into the
	// analyzer-augmented mode. Order is registration order.
	Analyzers      []analysis.Analyzer
	AnalysisConfig analysis.Config

	Progress ProgressSink
	// Paths are display names for progress events.
	Paths []string
}

// CheckResult carries the merged diagnostic set and stage timings.
type CheckResult struct {
	Bag      *diag.Bag
	Set      *compile.SourceSet
	Timings  Timings
	Timer    *observ.Timer
	HasUnits bool
}

// Check runs the pipeline through the diagnostics stage. Semantic problems
// are data in the result bag; Check fails only on pipeline misuse or
// cancellation.
func Check(ctx context.Context, req *CheckRequest) (CheckResult, error) {
	var result CheckResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing check request")
	}
	if req.Options.MaxDiagnostics <= 0 {
		req.Options.MaxDiagnostics = 100
	}
	timer := observ.NewTimer()
	result.Timer = timer
	result.Bag = diag.NewBag(req.Options.MaxDiagnostics)

	emitQueued(req.Progress, req.Paths)

	units, err := loadUnits(ctx, req, &result, timer)
	if err != nil {
		return result, err
	}
	result.HasUnits = len(units) > 0

	set := compile.New(units, req.Refs, req.Options)
	result.Set = set

	bindIdx := timer.Begin(string(StageBind))
	bindStart := time.Now()
	emitStage(req.Progress, req.Paths, StageBind, StatusWorking, nil)
	bound, err := set.Bind(ctx)
	if err != nil {
		emitStage(req.Progress, req.Paths, StageBind, StatusError, err)
		return result, err
	}
	timer.End(bindIdx, strconv.Itoa(bound.Table.Len())+" symbols")
	result.Timings.Set(StageBind, time.Since(bindStart))
	emitStage(req.Progress, req.Paths, StageBind, StatusDone, nil)

	diagIdx := timer.Begin(string(StageDiagnose))
	diagStart := time.Now()
	emitStage(req.Progress, req.Paths, StageDiagnose, StatusWorking, nil)
	if len(req.Analyzers) > 0 {
		engine := analysis.NewEngine(req.Options.Jobs, req.Analyzers...)
		bag, err := engine.Run(ctx, bound, req.AnalysisConfig)
		if err != nil {
			emitStage(req.Progress, req.Paths, StageDiagnose, StatusError, err)
			return result, err
		}
		result.Bag.Merge(bag)
	} else {
		bag, err := set.Diagnostics(ctx)
		if err != nil {
			emitStage(req.Progress, req.Paths, StageDiagnose, StatusError, err)
			return result, err
		}
		result.Bag.Merge(bag)
	}
	timer.End(diagIdx, strconv.Itoa(result.Bag.Len())+" diagnostics")
	result.Timings.Set(StageDiagnose, time.Since(diagStart))
	emitStage(req.Progress, req.Paths, StageDiagnose, StatusDone, nil)

	return result, nil
}

// loadUnits runs the load stage unless the request supplied units directly.
// I/O failures become diagnostics merged into the result bag.
func loadUnits(ctx context.Context, req *CheckRequest, result *CheckResult, timer *observ.Timer) ([]source.Unit, error) {
	if req.Units != nil {
		return req.Units, nil
	}
	loadIdx := timer.Begin(string(StageLoad))
	loadStart := time.Now()
	emitStage(req.Progress, req.Paths, StageLoad, StatusWorking, nil)
	loaded, err := unitfile.LoadPaths(ctx, req.UnitPaths, req.Options.MaxDiagnostics, req.Options.Jobs)
	if err != nil {
		emitStage(req.Progress, req.Paths, StageLoad, StatusError, err)
		return nil, err
	}
	units, ioBag := unitfile.Units(loaded, req.Options.MaxDiagnostics)
	result.Bag.Merge(ioBag)
	timer.End(loadIdx, strconv.Itoa(len(units))+" units")
	result.Timings.Set(StageLoad, time.Since(loadStart))
	emitStage(req.Progress, req.Paths, StageLoad, StatusDone, nil)
	return units, nil
}
