package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLoad is the unit loading stage.
	StageLoad Stage = "load"
	// StageBind is the declaration binding stage.
	StageBind Stage = "bind"
	// StageDiagnose is the diagnostics (and analysis) stage.
	StageDiagnose Stage = "diagnose"
	// StageCompile is the method body compilation stage.
	StageCompile Stage = "compile"
	// StageFinalize is the module finalization stage.
	StageFinalize Stage = "finalize"
	// StageSerialize is the binary serialization stage.
	StageSerialize Stage = "serialize"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a unit (or for the overall pipeline when Path
// is empty).
type Event struct {
	Path    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ErrorPolicy decides whether declaration or body errors block emission.
type ErrorPolicy uint8

const (
	// FailClosed stops the pipeline after diagnostics report errors.
	FailClosed ErrorPolicy = iota
	// EmitAnyway continues to finalize and serialize despite errors; the
	// result still reports success=false and the full diagnostic set.
	EmitAnyway
)

func (p ErrorPolicy) String() string {
	if p == EmitAnyway {
		return "emit-anyway"
	}
	return "fail-closed"
}

// Timings holds stage durations for one pipeline run.
type Timings struct {
	stages map[Stage]time.Duration
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	return t.stages[stage]
}

// Total returns the sum of all recorded stage durations.
func (t Timings) Total() time.Duration {
	var total time.Duration
	for _, dur := range t.stages {
		total += dur
	}
	return total
}
