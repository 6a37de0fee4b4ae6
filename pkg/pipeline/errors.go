package pipeline

import (
	"errors"
	"fmt"

	"github.com/specforge/specforge/pkg/session"
)

// WorkflowError reports a step failure. It names the step so the operator
// knows where the run stopped; the cause carries the provider or storage
// detail.
type WorkflowError struct {
	// Step is the pipeline step that failed.
	Step session.Step

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *WorkflowError) Unwrap() error { return e.Err }

// IsWorkflowError reports whether err carries a WorkflowError.
func IsWorkflowError(err error) bool {
	var we *WorkflowError
	return errors.As(err, &we)
}
