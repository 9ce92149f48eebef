package buildpipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sable/internal/analysis"
	"sable/internal/compile"
	"sable/internal/diag"
	"sable/internal/emitter"
	"sable/internal/objfile"
	"sable/internal/source"
)

func span(file source.FileID, start uint32) source.Span {
	return source.Span{File: file, Start: start, End: start + 1}
}

func validUnits() []source.Unit {
	return []source.Unit{{
		Path: "geo.unit.toml", File: 1, Name: "geo",
		Funcs: []source.FuncDecl{{
			Name: "identity", Params: []string{"a"}, Result: "int", Public: true,
			Doc: "Returns its argument.",
			Body: []source.Instr{
				{Op: "load", Args: []string{"a"}, Span: span(1, 1)},
				{Op: "ret", Span: span(1, 2)},
			},
			Span: span(1, 0),
		}},
	}}
}

func brokenUnits() []source.Unit {
	return []source.Unit{{
		Path: "geo.unit.toml", File: 1, Name: "geo",
		Funcs: []source.FuncDecl{{
			Name: "identity", Params: []string{"a"}, Public: true,
			Body: []source.Instr{
				{Op: "load", Args: []string{"ghost"}, Span: span(1, 1)},
				{Op: "ret", Span: span(1, 2)},
			},
			Span: span(1, 0),
		}},
	}}
}

func TestCheckWithSuppliedUnits(t *testing.T) {
	res, err := Check(context.Background(), &CheckRequest{Units: validUnits()})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected errors: %+v", res.Bag.Items())
	}
	if !res.HasUnits {
		t.Fatalf("units were supplied")
	}
	if res.Timings.Has(StageLoad) {
		t.Fatalf("load stage must be skipped when units are supplied")
	}
	if !res.Timings.Has(StageBind) || !res.Timings.Has(StageDiagnose) {
		t.Fatalf("bind and diagnose timings missing")
	}
}

func TestCheckLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	doc := "unit = \"geo\"\n\n[[funcs]]\nname = \"noop\"\n\n  [[funcs.body]]\n  op = \"ret\"\n"
	path := filepath.Join(dir, "geo.unit.toml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	res, err := Check(context.Background(), &CheckRequest{UnitPaths: []string{path}})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !res.HasUnits {
		t.Fatalf("expected loaded units")
	}
	if !res.Timings.Has(StageLoad) {
		t.Fatalf("load timing missing")
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected errors: %+v", res.Bag.Items())
	}
}

func TestCheckAnalyzerAugmented(t *testing.T) {
	units := validUnits()
	units[0].Funcs[0].Doc = "" // public decl without doc
	req := &CheckRequest{
		Units:     units,
		Analyzers: analysis.Builtins(),
	}
	res, err := Check(context.Background(), req)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.AnalysisMissingDoc {
			found = true
		}
	}
	if !found {
		t.Fatalf("analyzer findings missing: %+v", res.Bag.Items())
	}
}

func TestEmitHappyPath(t *testing.T) {
	root := t.TempDir()
	res, err := Emit(context.Background(), &EmitRequest{
		CheckRequest: CheckRequest{Units: validUnits()},
		OutputName:   "geo",
		OutputRoot:   root,
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, diagnostics: %+v", res.Bag.Items())
	}
	if res.OutputPath != filepath.Join(root, "target", "geo.smod") {
		t.Fatalf("unexpected output path %q", res.OutputPath)
	}
	info, statErr := os.Stat(res.OutputPath)
	if statErr != nil {
		t.Fatalf("image not written: %v", statErr)
	}
	if info.Size() == 0 {
		t.Fatalf("image is empty")
	}
	if len(res.Written) != 1 || res.Written[0] != objfile.StreamImage {
		t.Fatalf("unexpected streams: %v", res.Written)
	}
	for _, stage := range []Stage{StageCompile, StageFinalize, StageSerialize} {
		if !res.Timings.Has(stage) {
			t.Fatalf("missing timing for %s", stage)
		}
	}
}

func TestEmitFailClosedWritesNothing(t *testing.T) {
	root := t.TempDir()
	res, err := Emit(context.Background(), &EmitRequest{
		CheckRequest: CheckRequest{Units: brokenUnits()},
		OutputName:   "geo",
		OutputRoot:   root,
		Policy:       FailClosed,
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if res.Success {
		t.Fatalf("broken body must clear success")
	}
	if !res.Bag.HasErrors() {
		t.Fatalf("expected body diagnostics")
	}
	if res.OutputPath != "" || len(res.Written) != 0 {
		t.Fatalf("fail-closed must not write output: %q %v", res.OutputPath, res.Written)
	}
	if _, statErr := os.Stat(filepath.Join(root, "target")); !os.IsNotExist(statErr) {
		t.Fatalf("fail-closed must not create the output dir")
	}
}

func TestEmitAnywayStillProducesOutput(t *testing.T) {
	root := t.TempDir()
	res, err := Emit(context.Background(), &EmitRequest{
		CheckRequest: CheckRequest{Units: brokenUnits()},
		OutputName:   "geo",
		OutputRoot:   root,
		Policy:       EmitAnyway,
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if res.Success {
		t.Fatalf("success must stay false with error diagnostics")
	}
	if !res.Bag.HasErrors() {
		t.Fatalf("diagnostics must survive emit-anyway")
	}
	if res.OutputPath == "" {
		t.Fatalf("emit-anyway must produce output")
	}
	if _, statErr := os.Stat(res.OutputPath); statErr != nil {
		t.Fatalf("image not written: %v", statErr)
	}
}

func TestEmitAuxiliaryStreams(t *testing.T) {
	root := t.TempDir()
	res, err := Emit(context.Background(), &EmitRequest{
		CheckRequest:  CheckRequest{Units: validUnits()},
		OutputName:    "geo",
		OutputRoot:    root,
		WriteMetadata: true,
		Emit: emitter.EmitOptions{
			DebugMode: emitter.DebugSeparate,
			Docs:      true,
		},
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, diagnostics: %+v", res.Bag.Items())
	}
	if len(res.Written) != 4 {
		t.Fatalf("expected 4 streams, got %v", res.Written)
	}
	for _, name := range []string{"geo.smod", "geo.smeta", "geo.sdbg", "geo.docs.md"} {
		if _, statErr := os.Stat(filepath.Join(root, "target", name)); statErr != nil {
			t.Fatalf("missing output %s: %v", name, statErr)
		}
	}
}

func TestEmitOutputNameOverride(t *testing.T) {
	root := t.TempDir()
	res, err := Emit(context.Background(), &EmitRequest{
		CheckRequest: CheckRequest{Units: validUnits()},
		OutputName:   "geo",
		OutputRoot:   root,
		Emit:         emitter.EmitOptions{OutputName: "custom"},
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if filepath.Base(res.OutputPath) != "custom.smod" {
		t.Fatalf("output name override ignored: %q", res.OutputPath)
	}
}

func TestEmitProgressEvents(t *testing.T) {
	ch := make(chan Event, 256)
	root := t.TempDir()
	_, err := Emit(context.Background(), &EmitRequest{
		CheckRequest: CheckRequest{
			Units:    validUnits(),
			Progress: ChannelSink{Ch: ch},
			Paths:    []string{"geo.unit.toml"},
		},
		OutputName: "geo",
		OutputRoot: root,
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	close(ch)

	var done []Stage
	for evt := range ch {
		if evt.Status == StatusDone {
			done = append(done, evt.Stage)
		}
	}
	want := []Stage{StageBind, StageDiagnose, StageCompile, StageFinalize, StageSerialize}
	if len(done) != len(want) {
		t.Fatalf("expected %d done events, got %v", len(want), done)
	}
	for i, stage := range want {
		if done[i] != stage {
			t.Fatalf("stage order wrong at %d: got %s want %s", i, done[i], stage)
		}
	}
}

func TestEmitKindPropagates(t *testing.T) {
	root := t.TempDir()
	res, err := Emit(context.Background(), &EmitRequest{
		CheckRequest: CheckRequest{
			Units:   validUnits(),
			Options: compile.Options{OutputKind: compile.KindBinary},
		},
		OutputName: "app",
		OutputRoot: root,
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, diagnostics: %+v", res.Bag.Items())
	}
}
