package session

import "fmt"

// Status represents the lifecycle status of a session.
type Status string

const (
	// StatusInProgress indicates the session is executing or ready to.
	StatusInProgress Status = "in-progress"

	// StatusPaused indicates the run hit its deadline; resumable.
	StatusPaused Status = "paused"

	// StatusCompleted indicates all steps finished. Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed indicates a step errored; resumable from the last good
	// checkpoint.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if no transition leaves this status.
// Only completed is terminal: failed and paused sessions can always be
// resumed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Resumable returns true if a session in this status may return to
// in-progress.
func (s Status) Resumable() bool {
	return s == StatusFailed || s == StatusPaused
}

// CanTransitionTo reports whether the status machine permits moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed || next == StatusPaused
	case StatusFailed, StatusPaused:
		return next == StatusInProgress
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusInProgress, StatusPaused, StatusCompleted, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid session status: %s", s)
	}
}
