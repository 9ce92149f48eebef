package buildpipeline

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emitStage(sink ProgressSink, paths []string, stage Stage, status Status, err error) {
	if sink == nil {
		return
	}
	if len(paths) == 0 {
		sink.OnEvent(Event{Stage: stage, Status: status, Err: err})
		return
	}
	for _, p := range paths {
		sink.OnEvent(Event{Path: p, Stage: stage, Status: status, Err: err})
	}
}

func emitQueued(sink ProgressSink, paths []string) {
	if sink == nil {
		return
	}
	for _, p := range paths {
		sink.OnEvent(Event{Path: p, Stage: StageLoad, Status: StatusQueued})
	}
}
