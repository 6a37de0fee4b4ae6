package pipeline

import (
	"context"

	"github.com/specforge/specforge/pkg/session"
)

// StepResult is what a completed step hands back to the orchestrator.
type StepResult struct {
	// Outputs maps logical output names to the file paths the step wrote.
	// All paths are durable before Execute returns.
	Outputs map[string]string

	// Provider is the generation provider that serviced the step, or
	// "local" for steps that do not call out.
	Provider string

	// CostEstimate is an opaque resource-usage estimate, when known.
	CostEstimate float64
}

// Step is one stage of the pipeline. Implementations write their outputs
// atomically before returning; the orchestrator records the checkpoint
// afterwards, so a crash between the two leaves the step unproven and it
// simply reruns on resume.
type Step interface {
	// Name returns the pipeline position this step implements.
	Name() session.Step

	// Execute runs the step. prior holds the session inputs merged with
	// the outputs of every earlier step, keyed by logical name.
	Execute(ctx context.Context, prior map[string]string) (*StepResult, error)
}
