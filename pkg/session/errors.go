package session

import (
	"errors"
	"fmt"
)

// Error reports corrupted, missing, or inconsistently mutated session
// state. It is fatal and requires operator inspection; the message always
// names the offending session and file path so the operator can find it.
type Error struct {
	// SessionID is the session involved.
	SessionID string

	// Path is the state file involved, when known.
	Path string

	// Op is the store operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("session %s: %s: %v (state file: %s)", e.SessionID, e.Op, e.Err, e.Path)
	}
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// IsSessionError reports whether err carries a session Error.
func IsSessionError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
