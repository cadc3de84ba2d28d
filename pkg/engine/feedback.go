package engine

import (
	"fmt"
)

// Severity is the feedback severity level of a single message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ReservedAsset is the feedback bucket used for structural failures that do
// not belong to any declared asset type.
const ReservedAsset = "recipekit"

// Feedback accumulates hierarchical per-asset success/warning/error
// messages: feedback[assetType][entityName][severity] -> messages. It is
// append-only during a run and is the sole channel for user-visible
// outcome; the orchestrator never aborts for per-entity problems.
type Feedback struct {
	entries map[string]map[string]map[Severity][]string
}

// NewFeedback creates an empty feedback sink.
func NewFeedback() *Feedback {
	return &Feedback{entries: make(map[string]map[string]map[Severity][]string)}
}

// Report appends a message for (assetType, entityName, severity).
func (f *Feedback) Report(assetType, entityName string, severity Severity, message string) {
	byEntity, ok := f.entries[assetType]
	if !ok {
		byEntity = make(map[string]map[Severity][]string)
		f.entries[assetType] = byEntity
	}

	bySeverity, ok := byEntity[entityName]
	if !ok {
		bySeverity = make(map[Severity][]string)
		byEntity[entityName] = bySeverity
	}

	bySeverity[severity] = append(bySeverity[severity], message)
}

// Reportf appends a formatted message.
func (f *Feedback) Reportf(assetType, entityName string, severity Severity, format string, args ...any) {
	f.Report(assetType, entityName, severity, fmt.Sprintf(format, args...))
}

// HasError reports whether an error was recorded for the entity. Installers
// consult this before mutating: an entity with a recorded error must not be
// inserted or updated.
func (f *Feedback) HasError(assetType, entityName string) bool {
	if byEntity, ok := f.entries[assetType]; ok {
		if bySeverity, ok := byEntity[entityName]; ok {
			return len(bySeverity[SeverityError]) > 0
		}
	}
	return false
}

// ErrorCount returns the total number of error messages across all assets.
func (f *Feedback) ErrorCount() int {
	n := 0
	for _, byEntity := range f.entries {
		for _, bySeverity := range byEntity {
			n += len(bySeverity[SeverityError])
		}
	}
	return n
}

// SeverityCounts returns the number of messages per asset type and
// severity, used for metrics.
func (f *Feedback) SeverityCounts() map[string]map[Severity]int {
	out := make(map[string]map[Severity]int, len(f.entries))
	for asset, byEntity := range f.entries {
		counts := make(map[Severity]int)
		for _, bySeverity := range byEntity {
			for severity, messages := range bySeverity {
				counts[severity] += len(messages)
			}
		}
		out[asset] = counts
	}
	return out
}

// Merge appends all of other's messages into f.
func (f *Feedback) Merge(other *Feedback) {
	if other == nil {
		return
	}
	for asset, byEntity := range other.entries {
		for entity, bySeverity := range byEntity {
			for severity, messages := range bySeverity {
				for _, msg := range messages {
					f.Report(asset, entity, severity, msg)
				}
			}
		}
	}
}

// Snapshot returns a deep copy of the nested feedback map keyed by plain
// strings, suitable for JSON result payloads.
func (f *Feedback) Snapshot() map[string]map[string]map[string][]string {
	out := make(map[string]map[string]map[string][]string, len(f.entries))
	for asset, byEntity := range f.entries {
		outEntity := make(map[string]map[string][]string, len(byEntity))
		for entity, bySeverity := range byEntity {
			outSeverity := make(map[string][]string, len(bySeverity))
			for severity, messages := range bySeverity {
				copied := make([]string, len(messages))
				copy(copied, messages)
				outSeverity[string(severity)] = copied
			}
			outEntity[entity] = outSeverity
		}
		out[asset] = outEntity
	}
	return out
}
