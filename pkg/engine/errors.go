package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an installer error for
// isolation and escalation logic.
type ErrorClass string

const (
	// ErrorClassStructural indicates the whole orchestrator call must
	// abort: unreadable manifest, undecodable blob, unopenable package.
	ErrorClassStructural ErrorClass = "structural"

	// ErrorClassEntity indicates a failure isolated to one entity:
	// missing dependency, duplicate, unwritable target, collaborator
	// failure. Sibling entities keep processing.
	ErrorClassEntity ErrorClass = "entity"

	// ErrorClassFatal indicates the run cannot be considered clean even
	// if feedback looks mostly successful: missing upgrade prerequisite,
	// upgrade process failure, unregistered component.
	ErrorClassFatal ErrorClass = "fatal"
)

// InstallError represents a classified error with asset and entity context.
type InstallError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Asset is the asset type being installed, if applicable.
	Asset string `json:"asset,omitempty"`

	// Entity is the entity being installed, if applicable.
	Entity string `json:"entity,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	switch {
	case e.Asset != "" && e.Entity != "":
		return fmt.Sprintf("[%s] %s (asset=%s, entity=%s): %s",
			e.Class, e.Message, e.Asset, e.Entity, e.unwrapMessage())
	case e.Asset != "":
		return fmt.Sprintf("[%s] %s (asset=%s): %s",
			e.Class, e.Message, e.Asset, e.unwrapMessage())
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *InstallError) Unwrap() error {
	return e.Err
}

func (e *InstallError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *InstallError) Is(target error) bool {
	t, ok := target.(*InstallError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewStructuralError creates a new structural error.
func NewStructuralError(message string, err error) *InstallError {
	return &InstallError{
		Class:   ErrorClassStructural,
		Message: message,
		Err:     err,
	}
}

// NewEntityError creates a new per-entity error.
func NewEntityError(message string, err error) *InstallError {
	return &InstallError{
		Class:   ErrorClassEntity,
		Message: message,
		Err:     err,
	}
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, err error) *InstallError {
	return &InstallError{
		Class:   ErrorClassFatal,
		Message: message,
		Err:     err,
	}
}

// WithAsset adds asset context to an error.
func (e *InstallError) WithAsset(asset string) *InstallError {
	e.Asset = asset
	return e
}

// WithEntity adds entity context to an error.
func (e *InstallError) WithEntity(entity string) *InstallError {
	e.Entity = entity
	return e
}

// WithCode adds an error code to an error.
func (e *InstallError) WithCode(code string) *InstallError {
	e.Code = code
	return e
}

// IsStructural returns true if the error aborts the whole orchestrator call.
func IsStructural(err error) bool {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Class == ErrorClassStructural
	}
	return false
}

// IsFatal returns true if the error escalates run status to fatal.
func IsFatal(err error) bool {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}

// Common error codes.
const (
	ErrCodeManifest        = "MANIFEST_INVALID"
	ErrCodeBlobDecode      = "BLOB_UNDECODABLE"
	ErrCodeUnknownAsset    = "UNKNOWN_ASSET_TYPE"
	ErrCodeMissingEntry    = "MANIFEST_ENTRY_MISSING"
	ErrCodeDangling        = "DANGLING_REFERENCE"
	ErrCodeDuplicate       = "DUPLICATE"
	ErrCodeUnwritable      = "TARGET_UNWRITABLE"
	ErrCodeUpgradeFailed   = "UPGRADE_FAILED"
	ErrCodeNotRegistered   = "COMPONENT_NOT_REGISTERED"
	ErrCodeProgressMissing = "PROGRESS_NOT_FOUND"
)
