package engine

import (
	"testing"
)

func TestFeedback_ReportAndSnapshot(t *testing.T) {
	f := NewFeedback()
	f.Report("courses", "course-a", SeveritySuccess, "restored")
	f.Report("courses", "course-a", SeverityWarning, "already visible")
	f.Report("courses", "course-b", SeverityError, "backup unreadable")
	f.Reportf("config", "pluginx", SeveritySuccess, "key %s updated", "foo")

	snap := f.Snapshot()

	if len(snap["courses"]["course-a"]["success"]) != 1 {
		t.Error("Expected one success for course-a")
	}
	if len(snap["courses"]["course-a"]["warning"]) != 1 {
		t.Error("Expected one warning for course-a")
	}
	if got := snap["config"]["pluginx"]["success"][0]; got != "key foo updated" {
		t.Errorf("Unexpected formatted message: %q", got)
	}
}

func TestFeedback_HasError(t *testing.T) {
	f := NewFeedback()
	f.Report("courses", "course-b", SeverityError, "backup unreadable")
	f.Report("courses", "course-a", SeverityWarning, "skipped")

	if !f.HasError("courses", "course-b") {
		t.Error("Expected error recorded for course-b")
	}
	if f.HasError("courses", "course-a") {
		t.Error("Expected no error for course-a")
	}
	if f.HasError("plugins", "course-b") {
		t.Error("Expected no error under a different asset type")
	}
}

func TestFeedback_Merge(t *testing.T) {
	a := NewFeedback()
	a.Report("courses", "c1", SeveritySuccess, "ok")

	b := NewFeedback()
	b.Report("courses", "c1", SeverityError, "broken")
	b.Report("localdata", "file.json", SeverityWarning, "dup")

	a.Merge(b)

	if !a.HasError("courses", "c1") {
		t.Error("Expected merged error for c1")
	}
	if a.ErrorCount() != 1 {
		t.Errorf("Expected 1 error, got %d", a.ErrorCount())
	}

	snap := a.Snapshot()
	if len(snap["courses"]["c1"]["success"]) != 1 {
		t.Error("Expected original success to survive merge")
	}
	if len(snap["localdata"]["file.json"]["warning"]) != 1 {
		t.Error("Expected merged warning for localdata")
	}
}

func TestFeedback_SnapshotIsCopy(t *testing.T) {
	f := NewFeedback()
	f.Report("courses", "c1", SeveritySuccess, "ok")

	snap := f.Snapshot()
	snap["courses"]["c1"]["success"][0] = "mutated"

	if got := f.Snapshot()["courses"]["c1"]["success"][0]; got != "ok" {
		t.Errorf("Expected snapshot mutation to not affect sink, got %q", got)
	}
}

func TestFeedback_SeverityCounts(t *testing.T) {
	f := NewFeedback()
	f.Report("courses", "c1", SeveritySuccess, "ok")
	f.Report("courses", "c2", SeveritySuccess, "ok")
	f.Report("courses", "c3", SeverityError, "bad")

	counts := f.SeverityCounts()
	if counts["courses"][SeveritySuccess] != 2 {
		t.Errorf("Expected 2 successes, got %d", counts["courses"][SeveritySuccess])
	}
	if counts["courses"][SeverityError] != 1 {
		t.Errorf("Expected 1 error, got %d", counts["courses"][SeverityError])
	}
}
