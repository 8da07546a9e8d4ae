package recorder

// CommandEvent records one handled user command.
type CommandEvent struct {
	AccountID int64
	Command   string
}

// SweepEvent records one maintenance sweep run.
type SweepEvent struct {
	DurationMs int64
}

// Recorder persists an audit trail for analysis. Writes are best-effort and
// never on the request path's critical section.
type Recorder interface {
	RecordCommand(evt *CommandEvent) error
	RecordSweep(evt *SweepEvent) error
	Close() error
}
