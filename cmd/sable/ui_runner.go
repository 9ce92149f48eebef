package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"sable/internal/buildpipeline"
	"sable/internal/ui"
)

type checkOutcome struct {
	result buildpipeline.CheckResult
	err    error
}

type emitOutcome struct {
	result buildpipeline.EmitResult
	err    error
}

func runCheckWithUI(ctx context.Context, title string, paths []string, req *buildpipeline.CheckRequest) (buildpipeline.CheckResult, error) {
	if req == nil {
		return buildpipeline.CheckResult{}, fmt.Errorf("missing check request")
	}
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Check(ctx, &reqCopy)
		outcomeCh <- checkOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

func runEmitWithUI(ctx context.Context, title string, paths []string, req *buildpipeline.EmitRequest) (buildpipeline.EmitResult, error) {
	if req == nil {
		return buildpipeline.EmitResult{}, fmt.Errorf("missing emit request")
	}
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan emitOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Emit(ctx, &reqCopy)
		outcomeCh <- emitOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
