package engine

import (
	"fmt"
)

// Namespace is a matching category inside the identifier registry.
type Namespace string

const (
	// NamespaceCourses maps original course IDs to restored course IDs.
	NamespaceCourses Namespace = "courses"

	// NamespaceComponents maps original adaptive-quiz style activity IDs
	// to restored instance IDs.
	NamespaceComponents Namespace = "components"

	// NamespaceQuizID maps original quiz activity IDs to restored
	// instance IDs.
	NamespaceQuizID Namespace = "quizid"

	// NamespaceCatScales maps original scale IDs to installed scale IDs.
	NamespaceCatScales Namespace = "catscales"

	// NamespaceTestID maps original local-data test IDs to inserted
	// record IDs.
	NamespaceTestID Namespace = "testid"

	// NamespaceLearningPaths maps original learning path IDs to inserted
	// record IDs.
	NamespaceLearningPaths Namespace = "learningpaths"
)

// Registry is the shared old-to-new identifier mapping store, keyed by
// (namespace, oldID). Entries are write-once within one orchestration run:
// the first binding wins and later conflicting bindings are rejected. The
// registry does not chase mapping chains; callers re-resolve explicitly.
//
// A missing lookup is a normal, expected outcome (dangling reference) and is
// reported through feedback by the caller, never as a crash.
type Registry struct {
	entries map[Namespace]map[string]string
}

// Conflict records a rejected re-binding of an existing registry entry.
type Conflict struct {
	Namespace Namespace
	OldID     string
	Existing  string
	Rejected  string
}

// String renders the conflict for feedback messages.
func (c Conflict) String() string {
	return fmt.Sprintf("%s/%s already mapped to %s, rejected re-binding to %s",
		c.Namespace, c.OldID, c.Existing, c.Rejected)
}

// NewRegistry creates an empty identifier registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Namespace]map[string]string)}
}

// Put binds (namespace, oldID) to newID. Rebinding an existing entry to the
// same value is a no-op; rebinding to a different value is rejected and
// returned as a conflict.
func (r *Registry) Put(ns Namespace, oldID, newID string) *Conflict {
	m, ok := r.entries[ns]
	if !ok {
		m = make(map[string]string)
		r.entries[ns] = m
	}

	if existing, ok := m[oldID]; ok {
		if existing == newID {
			return nil
		}
		return &Conflict{Namespace: ns, OldID: oldID, Existing: existing, Rejected: newID}
	}

	m[oldID] = newID
	return nil
}

// Get looks up the new ID bound to (namespace, oldID).
func (r *Registry) Get(ns Namespace, oldID string) (string, bool) {
	m, ok := r.entries[ns]
	if !ok {
		return "", false
	}
	newID, ok := m[oldID]
	return newID, ok
}

// Merge copies all entries from other into r. Conflicting re-bindings keep
// the existing entry and are returned for reporting.
func (r *Registry) Merge(other *Registry) []Conflict {
	if other == nil {
		return nil
	}

	var conflicts []Conflict
	for ns, m := range other.entries {
		for oldID, newID := range m {
			if c := r.Put(ns, oldID, newID); c != nil {
				conflicts = append(conflicts, *c)
			}
		}
	}
	return conflicts
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for ns, m := range r.entries {
		cm := make(map[string]string, len(m))
		for k, v := range m {
			cm[k] = v
		}
		clone.entries[ns] = cm
	}
	return clone
}

// Len returns the total number of entries across all namespaces.
func (r *Registry) Len() int {
	n := 0
	for _, m := range r.entries {
		n += len(m)
	}
	return n
}

// Snapshot returns a copy of all entries for result reporting.
func (r *Registry) Snapshot() map[string]map[string]string {
	out := make(map[string]map[string]string, len(r.entries))
	for ns, m := range r.entries {
		cm := make(map[string]string, len(m))
		for k, v := range m {
			cm[k] = v
		}
		out[string(ns)] = cm
	}
	return out
}
