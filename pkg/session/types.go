package session

import "time"

// Step identifies one stage of the fixed document pipeline.
type Step string

// The pipeline steps, in execution order.
const (
	StepPRDExtract     Step = "prd-extract"
	StepDesignAnalysis Step = "design-analysis"
	StepValidation     Step = "validation"
	StepDocGeneration  Step = "doc-generation"
	StepAssembly       Step = "assembly"
)

// orderedSteps is the canonical pipeline order.
var orderedSteps = []Step{
	StepPRDExtract,
	StepDesignAnalysis,
	StepValidation,
	StepDocGeneration,
	StepAssembly,
}

// Steps returns the pipeline steps in execution order.
func Steps() []Step {
	out := make([]Step, len(orderedSteps))
	copy(out, orderedSteps)
	return out
}

// Index returns the zero-based position of the step in the pipeline, or -1
// for an unknown step. A session with N checkpoints has CurrentStep at
// index N.
func (s Step) Index() int {
	for i, step := range orderedSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the step after s, or false when s is the last step.
func (s Step) Next() (Step, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(orderedSteps) {
		return "", false
	}
	return orderedSteps[i+1], true
}

// Session is the durable record of one pipeline execution instance.
type Session struct {
	// ID is the opaque session identifier, unique and immutable,
	// lexically sortable by creation time.
	ID string `yaml:"session_id" validate:"required"`

	// CurrentStep is the next step to execute.
	CurrentStep Step `yaml:"current_step" validate:"required,oneof=prd-extract design-analysis validation doc-generation assembly"`

	// Status is the session lifecycle status.
	Status Status `yaml:"status" validate:"required,oneof=in-progress paused completed failed"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `yaml:"created_at" validate:"required"`

	// UpdatedAt advances on every checkpoint or status change.
	UpdatedAt time.Time `yaml:"updated_at" validate:"required"`

	// Inputs are immutable references to the source material the run was
	// started with (logical name to path or identifier).
	Inputs map[string]string `yaml:"inputs"`

	// Outputs maps logical output names to file paths, populated
	// incrementally as steps complete. Entries are never removed.
	Outputs map[string]string `yaml:"outputs"`

	// Checkpoints is the append-only, per-step completion record, capped
	// at the number of pipeline steps.
	Checkpoints []Checkpoint `yaml:"checkpoints" validate:"max=5,dive"`

	// Config is the immutable run-time configuration snapshot captured at
	// creation, so later configuration changes never retroactively alter
	// the run's behavior.
	Config RunConfig `yaml:"config"`
}

// Checkpoint is the immutable proof-of-completion record for one step.
type Checkpoint struct {
	// Step is the pipeline step that completed.
	Step Step `yaml:"step" validate:"required"`

	// Timestamp is the completion time.
	Timestamp time.Time `yaml:"timestamp" validate:"required"`

	// Outputs lists the output file paths this step produced.
	Outputs []string `yaml:"outputs"`

	// Metadata records execution facts for the step.
	Metadata CheckpointMetadata `yaml:"metadata"`
}

// CheckpointMetadata records execution facts about a completed step.
type CheckpointMetadata struct {
	// Duration is how long the step took.
	Duration time.Duration `yaml:"duration"`

	// Provider is the generation provider that serviced the step, or
	// "local" for steps that do not call out.
	Provider string `yaml:"provider,omitempty"`

	// CostEstimate is an opaque resource-usage estimate, when known.
	CostEstimate float64 `yaml:"cost_estimate,omitempty"`
}

// RunConfig is the per-run configuration snapshot embedded in the session.
type RunConfig struct {
	// ProviderOrder is the configured provider priority order.
	ProviderOrder []string `yaml:"provider_order" validate:"required,min=1"`

	// TimeoutMinutes is the wall-clock budget for the whole pipeline.
	TimeoutMinutes int `yaml:"timeout_minutes" validate:"min=1"`

	// MaxRetries is the per-provider transient retry cap.
	MaxRetries int `yaml:"max_retries" validate:"min=0"`

	// MaxFallbacks caps automatic provider substitutions per run.
	MaxFallbacks int `yaml:"max_fallbacks" validate:"min=0"`
}

// HasCheckpoint reports whether the session already has a checkpoint for
// the given step.
func (s *Session) HasCheckpoint(step Step) bool {
	for _, cp := range s.Checkpoints {
		if cp.Step == step {
			return true
		}
	}
	return false
}

// PriorOutputs returns the session inputs merged with the outputs recorded
// so far, the view a step receives when it executes. Input and output names
// are disjoint by construction.
func (s *Session) PriorOutputs() map[string]string {
	merged := make(map[string]string, len(s.Inputs)+len(s.Outputs))
	for k, v := range s.Inputs {
		merged[k] = v
	}
	for k, v := range s.Outputs {
		merged[k] = v
	}
	return merged
}
