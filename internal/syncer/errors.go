package syncer

import (
	"errors"
	"fmt"
)

// Code classifies a sync failure by what the caller should do about it.
type Code string

const (
	// CodeTransport covers connectivity, timeouts, and remote refusals.
	// Deferred work: retry on the next scheduled cycle.
	CodeTransport Code = "TRANSPORT"
	// CodeDecode covers malformed remote payloads.
	CodeDecode Code = "DECODE"
	// CodeStorage covers record store failures. These are not retried
	// blindly; a broken store fails the cycle loudly.
	CodeStorage Code = "STORAGE"
	// CodeInvalidArgument covers caller mistakes such as an empty batch.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeConflictIgnored marks an intentionally absorbed conflict, such
	// as a refused release. Logged, never propagated as failure.
	CodeConflictIgnored Code = "CONFLICT_IGNORED"
)

// SyncError wraps a failure with its classification and the cycle step
// that produced it.
type SyncError struct {
	Code Code
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func newSyncError(code Code, op string, err error) *SyncError {
	return &SyncError{Code: code, Op: op, Err: err}
}

// CodeOf extracts the classification from err, or empty if err is not a
// SyncError.
func CodeOf(err error) Code {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsDeferred reports whether err is transient connectivity trouble the
// loop should absorb quietly.
func IsDeferred(err error) bool {
	return CodeOf(err) == CodeTransport
}
