package engine

import (
	"fmt"
)

// RunStatus is the aggregate severity level of an orchestration run.
// Callers use it only for an overall verdict; per-entity detail lives in
// the feedback sink.
type RunStatus int

const (
	// StatusOK indicates the run completed without recorded problems.
	StatusOK RunStatus = 0

	// StatusPartial indicates per-entity warnings or errors occurred but
	// the run itself completed.
	StatusPartial RunStatus = 1

	// StatusFatal indicates the installation did not complete cleanly,
	// even if feedback looks mostly successful.
	StatusFatal RunStatus = 2
)

// String renders the status for logs.
func (s RunStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StatusTracker holds a run status that only ever rises. Raising to a lower
// level than the current one is a no-op.
type StatusTracker struct {
	current RunStatus
}

// NewStatusTracker creates a tracker at StatusOK.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{current: StatusOK}
}

// Raise lifts the status to level if level is higher than the current one.
func (t *StatusTracker) Raise(level RunStatus) {
	if level > t.current {
		t.current = level
	}
}

// Current returns the current status.
func (t *StatusTracker) Current() RunStatus {
	return t.current
}
