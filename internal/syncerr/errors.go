// Package syncerr defines the error kinds the sync engine distinguishes.
// Validation failures are rejected before any mutation; conflict, remote and
// persistence failures abort a single item while the surrounding job keeps
// running; ErrUnsupportedDirection fails a whole job.
package syncerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnsupportedDirection is job-fatal: a job configured with the
// bidirectional direction fails immediately, before any item is attempted.
var ErrUnsupportedDirection = errors.New("bidirectional direction is not supported")

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError aborts a single item during a non-auto-resolve sync. The
// mapping's timestamps stay untouched so the item remains retry-eligible.
type ConflictError struct {
	MappingID uuid.UUID
	Fields    []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unresolved conflicts on mapping %s: %v", e.MappingID, e.Fields)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// RemoteError wraps a failure from the injected remote client.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure from the local store or repositories.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
