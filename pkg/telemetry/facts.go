package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fact is one line-delimited execution fact in the workspace metrics log.
type Fact struct {
	// ID is the unique identifier for this fact.
	ID string `json:"id"`

	// Timestamp is when the fact was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Type is the fact type (session.started, step.completed, ...).
	Type string `json:"type"`

	// SessionID is the session this fact belongs to.
	SessionID string `json:"session_id,omitempty"`

	// Step is the pipeline step involved, if any.
	Step string `json:"step,omitempty"`

	// Provider is the generation provider involved, if any.
	Provider string `json:"provider,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message,omitempty"`

	// Data contains additional fact-specific fields.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Fact type constants.
const (
	FactSessionStarted   = "session.started"
	FactSessionResumed   = "session.resumed"
	FactSessionCompleted = "session.completed"
	FactSessionFailed    = "session.failed"
	FactSessionPaused    = "session.paused"
	FactStepStarted      = "step.started"
	FactStepCompleted    = "step.completed"
	FactStepSkipped      = "step.skipped"
	FactStepFailed       = "step.failed"
	FactProviderFallback = "provider.fallback"
)

// FactsLog is the append-only, line-delimited execution facts writer backing
// the workspace metrics.log file. Appends are serialized; each fact is one
// JSON line so the log stays greppable and tail-friendly.
type FactsLog struct {
	path string
	mu   sync.Mutex
}

// NewFactsLog creates a facts log writing to the given path.
func NewFactsLog(path string) *FactsLog {
	return &FactsLog{path: path}
}

// Append writes one fact to the log. Missing ID and Timestamp are filled in.
// Facts are observability, not state: append failures are returned but never
// interrupt a pipeline.
func (f *FactsLog) Append(fact Fact) error {
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}
	if fact.Timestamp.IsZero() {
		fact.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("encode fact: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open facts log %s: %w", f.path, err)
	}
	_, werr := file.Write(line)
	if cerr := file.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append fact to %s: %w", f.path, werr)
	}
	return nil
}
