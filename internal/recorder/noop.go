package recorder

// NoopRecorder is a no-op implementation used when no audit path is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCommand(_ *CommandEvent) error { return nil }
func (n *NoopRecorder) RecordSweep(_ *SweepEvent) error     { return nil }
func (n *NoopRecorder) Close() error                        { return nil }
