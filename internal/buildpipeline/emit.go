package buildpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sable/internal/diag"
	"sable/internal/emitter"
	"sable/internal/objfile"
	"sable/internal/observ"
)

// EmitRequest configures a full pipeline run producing binary output.
type EmitRequest struct {
	CheckRequest
	Emit      emitter.EmitOptions
	Policy    ErrorPolicy
	Resources []emitter.Resource

	// OutputName names the module; Emit.OutputName overrides it.
	OutputName string
	// OutputRoot is where the target/ directory is created. Empty = cwd.
	OutputRoot string
	// WriteMetadata additionally writes a metadata-only stream alongside
	// the primary image.
	WriteMetadata bool
}

// EmitResult captures the outcome of a full pipeline run.
type EmitResult struct {
	// Success is true when every stage completed and no error-severity
	// diagnostics were produced. A false Success still carries the full
	// diagnostic set.
	Success    bool
	Bag        *diag.Bag
	OutputPath string
	Written    []objfile.StreamKind
	Timings    Timings
	Timer      *observ.Timer
}

// Emit runs the whole pipeline. Under FailClosed (the default), declaration
// or body errors stop the run before finalization; under EmitAnyway the
// module is still finalized and serialized, with Success=false and every
// diagnostic reported. Go errors are reserved for pipeline misuse,
// cancellation and output I/O.
func Emit(ctx context.Context, req *EmitRequest) (EmitResult, error) {
	var result EmitResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing emit request")
	}

	checkRes, err := Check(ctx, &req.CheckRequest)
	result.Bag = checkRes.Bag
	result.Timings = checkRes.Timings
	result.Timer = checkRes.Timer
	if err != nil {
		return result, err
	}

	if result.Bag.HasErrors() && req.Policy == FailClosed {
		return result, nil
	}

	bound, err := checkRes.Set.Bind(ctx) // memoized, already computed
	if err != nil {
		return result, err
	}

	name := req.OutputName
	if req.Emit.OutputName != "" {
		name = req.Emit.OutputName
	}
	opts := req.Emit
	opts.Concurrent = req.Options.Concurrent
	opts.Jobs = req.Options.Jobs

	mod, err := emitter.NewModule(name, req.Options.OutputKind, bound)
	if err != nil {
		return result, err
	}

	compileIdx := checkRes.Timer.Begin(string(StageCompile))
	compileStart := time.Now()
	emitStage(req.Progress, req.Paths, StageCompile, StatusWorking, nil)
	bodiesOK, bodyBag, err := emitter.CompileMethods(ctx, bound, mod, opts)
	if err != nil {
		emitStage(req.Progress, req.Paths, StageCompile, StatusError, err)
		return result, err
	}
	result.Bag.Merge(bodyBag)
	checkRes.Timer.End(compileIdx, strconv.Itoa(len(mod.Methods()))+" methods")
	result.Timings.Set(StageCompile, time.Since(compileStart))
	emitStage(req.Progress, req.Paths, StageCompile, StatusDone, nil)

	if !bodiesOK && req.Policy == FailClosed {
		return result, nil
	}

	finalizeIdx := checkRes.Timer.Begin(string(StageFinalize))
	finalizeStart := time.Now()
	emitStage(req.Progress, req.Paths, StageFinalize, StatusWorking, nil)
	finalBag := diag.NewBag(req.Options.MaxDiagnostics)
	if err := emitter.Finalize(mod, req.Resources, opts, finalBag); err != nil {
		emitStage(req.Progress, req.Paths, StageFinalize, StatusError, err)
		return result, err
	}
	result.Bag.Merge(finalBag)
	checkRes.Timer.End(finalizeIdx, "")
	result.Timings.Set(StageFinalize, time.Since(finalizeStart))
	emitStage(req.Progress, req.Paths, StageFinalize, StatusDone, nil)

	serializeIdx := checkRes.Timer.Begin(string(StageSerialize))
	serializeStart := time.Now()
	emitStage(req.Progress, req.Paths, StageSerialize, StatusWorking, nil)
	streams, outputPath, closeStreams, err := openStreams(req, mod, opts)
	if err != nil {
		emitStage(req.Progress, req.Paths, StageSerialize, StatusError, err)
		return result, err
	}
	serRes, err := objfile.Serialize(mod, streams, opts)
	result.Bag.Merge(serRes.Bag)
	result.Written = serRes.Written
	result.OutputPath = outputPath
	if closeErr := closeStreams(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		emitStage(req.Progress, req.Paths, StageSerialize, StatusError, err)
		return result, err
	}
	checkRes.Timer.End(serializeIdx, strconv.Itoa(len(serRes.Written))+" streams")
	result.Timings.Set(StageSerialize, time.Since(serializeStart))
	emitStage(req.Progress, req.Paths, StageSerialize, StatusDone, nil)

	result.Success = serRes.Success && bodiesOK && !result.Bag.HasErrors()
	return result, nil
}

// openStreams creates the output files under <root>/target per the options.
// The returned close function flushes and closes every opened file.
func openStreams(req *EmitRequest, mod *emitter.Module, opts emitter.EmitOptions) (objfile.Streams, string, func() error, error) {
	root := req.OutputRoot
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		root = cwd
	}
	outDir := filepath.Join(root, "target")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return objfile.Streams{}, "", nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var opened []*os.File
	open := func(name string) (*os.File, error) {
		// #nosec G304 -- paths derive from the output configuration
		f, err := os.Create(filepath.Join(outDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create output %q: %w", name, err)
		}
		opened = append(opened, f)
		return f, nil
	}
	closeAll := func() error {
		var firstErr error
		for _, f := range opened {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	fail := func(err error) (objfile.Streams, string, func() error, error) {
		_ = closeAll()
		return objfile.Streams{}, "", nil, err
	}

	var streams objfile.Streams
	imagePath := filepath.Join(outDir, mod.Name()+".smod")
	image, err := open(mod.Name() + ".smod")
	if err != nil {
		return fail(err)
	}
	streams.Image = image

	if req.WriteMetadata && !opts.MetadataOnly {
		meta, err := open(mod.Name() + ".smeta")
		if err != nil {
			return fail(err)
		}
		streams.Metadata = meta
	}
	if opts.DebugMode == emitter.DebugSeparate {
		dbg, err := open(mod.Name() + ".sdbg")
		if err != nil {
			return fail(err)
		}
		streams.Debug = dbg
	}
	if opts.Docs {
		docs, err := open(mod.Name() + ".docs.md")
		if err != nil {
			return fail(err)
		}
		streams.Docs = docs
	}
	return streams, imagePath, closeAll, nil
}
