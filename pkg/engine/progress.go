package engine

import (
	"context"
	"errors"
	"time"
)

// ErrProgressNotFound is returned when no progress record exists for a
// manifest fingerprint. After a completed install the record is deleted, so
// a post-completion lookup surfaces this condition rather than restarting.
var ErrProgressNotFound = errors.New("progress record not found")

// ProgressRecord is the persisted install progress for one manifest
// fingerprint. It exists from the first install invocation until the final
// step completes, at which point it is deleted (terminal state).
type ProgressRecord struct {
	// Fingerprint is the content hash of the manifest.
	Fingerprint string `json:"fingerprint"`

	// CurrentStep is the next step to execute, in [0, MaxStep).
	CurrentStep int `json:"current_step"`

	// MaxStep is the total number of steps in the manifest.
	MaxStep int `json:"max_step"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// ModifiedAt is when the record was last advanced.
	ModifiedAt time.Time `json:"modified_at"`
}

// ProgressStore persists install progress keyed by manifest fingerprint.
// Concurrent invocations for the same fingerprint are not supported; the
// caller serializes invocations per fingerprint.
type ProgressStore interface {
	// Get retrieves the record for a fingerprint, or ErrProgressNotFound.
	Get(ctx context.Context, fingerprint string) (*ProgressRecord, error)

	// Create creates a record at step 0 for a fingerprint.
	Create(ctx context.Context, fingerprint string, maxStep int) (*ProgressRecord, error)

	// Advance persists a new current step for a fingerprint.
	Advance(ctx context.Context, fingerprint string, currentStep int) error

	// Delete removes the record for a fingerprint.
	Delete(ctx context.Context, fingerprint string) error
}
