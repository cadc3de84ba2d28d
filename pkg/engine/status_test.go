package engine

import (
	"testing"
)

func TestStatusTracker_Monotonic(t *testing.T) {
	tracker := NewStatusTracker()

	// Raising with [0, 2, 1] must end at 2: status never decreases.
	for _, level := range []RunStatus{StatusOK, StatusFatal, StatusPartial} {
		tracker.Raise(level)
	}

	if got := tracker.Current(); got != StatusFatal {
		t.Errorf("Expected final status %v, got %v", StatusFatal, got)
	}
}

func TestStatusTracker_StartsOK(t *testing.T) {
	tracker := NewStatusTracker()
	if got := tracker.Current(); got != StatusOK {
		t.Errorf("Expected initial status %v, got %v", StatusOK, got)
	}
}

func TestRunStatus_String(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   string
	}{
		{StatusOK, "ok"},
		{StatusPartial, "partial"},
		{StatusFatal, "fatal"},
		{RunStatus(9), "unknown(9)"},
	}

	for _, tc := range tests {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", int(tc.status), got, tc.want)
		}
	}
}
