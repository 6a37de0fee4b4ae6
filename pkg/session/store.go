package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/specforge/specforge/pkg/fsstore"
	"github.com/specforge/specforge/pkg/telemetry"
	"github.com/specforge/specforge/pkg/workspace"
)

// ErrorRecord is the postmortem record written alongside a failed session.
// It lives in its own file, distinct from the session state, and is never
// overwritten: the first failure is the one worth inspecting.
type ErrorRecord struct {
	// Timestamp is when the failure was recorded.
	Timestamp time.Time `yaml:"timestamp" validate:"required"`

	// Step is the pipeline step that was executing, if known.
	Step Step `yaml:"step,omitempty"`

	// Message is the failure message.
	Message string `yaml:"message" validate:"required"`

	// Stack is the goroutine stack at record time.
	Stack string `yaml:"stack,omitempty"`
}

// Store persists sessions in the workspace via the atomic, schema-validated
// fsstore path. All mutate-and-persist operations are serialized through
// one mutex: the deadline controller's pause callback fires on a timer
// goroutine and must not race the orchestrator mutating the same session.
type Store struct {
	layout *workspace.Layout
	codec  *fsstore.Codec
	log    *telemetry.Logger

	// mu guards every session mutation and its persist.
	mu sync.Mutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewStore creates a session store over the given workspace layout.
func NewStore(layout *workspace.Layout, log *telemetry.Logger) *Store {
	return &Store{
		layout: layout,
		codec:  fsstore.NewCodec(),
		log:    log.NewComponentLogger("session"),
		now:    time.Now,
	}
}

// Init allocates a session id, creates the on-disk directory skeleton (one
// subdirectory per pipeline step, eagerly, so later writes never need
// existence checks), and atomically writes the initial state.
func (s *Store) Init(inputs map[string]string, cfg RunConfig) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	id := fmt.Sprintf("sess-%d", now.UnixMilli())

	// Millisecond timestamps can collide; refusing is cheaper than
	// silently sharing the first session's state file.
	if _, err := os.Stat(s.layout.SessionDir(id)); err == nil {
		return nil, &Error{SessionID: id, Op: "init",
			Err: fmt.Errorf("session already exists")}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{SessionID: id, Op: "init", Err: err}
	}

	for _, step := range Steps() {
		if err := os.MkdirAll(s.layout.StepDir(id, string(step)), 0o755); err != nil {
			return nil, &Error{SessionID: id, Op: "init", Err: err}
		}
	}

	sess := &Session{
		ID:          id,
		CurrentStep: Steps()[0],
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
		Inputs:      inputs,
		Outputs:     map[string]string{},
		Config:      cfg,
	}
	if err := s.save(sess); err != nil {
		return nil, err
	}

	s.log.WithSessionID(id).Info("session initialized")
	return sess, nil
}

// SaveCheckpoint validates that step is the session's current step, appends
// the checkpoint, advances the current step, and persists atomically. It
// rejects out-of-order and duplicate checkpoints.
func (s *Store) SaveCheckpoint(sess *Session, step Step, outputs []string, meta CheckpointMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if step.Index() < 0 {
		return &Error{SessionID: sess.ID, Op: "save checkpoint", Err: fmt.Errorf("unknown step %q", step)}
	}
	if sess.HasCheckpoint(step) {
		return &Error{SessionID: sess.ID, Op: "save checkpoint",
			Err: fmt.Errorf("step %s already has a checkpoint", step)}
	}
	if step != sess.CurrentStep {
		return &Error{SessionID: sess.ID, Op: "save checkpoint",
			Err: fmt.Errorf("out-of-order checkpoint: step %s, session is at %s", step, sess.CurrentStep)}
	}

	sess.Checkpoints = append(sess.Checkpoints, Checkpoint{
		Step:      step,
		Timestamp: s.now().UTC(),
		Outputs:   outputs,
		Metadata:  meta,
	})
	if next, ok := step.Next(); ok {
		sess.CurrentStep = next
	}

	if err := s.save(sess); err != nil {
		return err
	}

	s.log.WithSessionID(sess.ID).WithStep(string(step)).
		Infof("checkpoint %d/%d saved", len(sess.Checkpoints), len(Steps()))
	return nil
}

// RecordOutputs merges named step outputs into the session's output map and
// persists. Existing entries are never removed or renamed.
func (s *Store) RecordOutputs(sess *Session, outputs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.Outputs == nil {
		sess.Outputs = map[string]string{}
	}
	for name, path := range outputs {
		sess.Outputs[name] = path
	}
	return s.save(sess)
}

// Load reads a session by id. Corrupted state is never silently repaired;
// it surfaces as an Error naming the session and file.
func (s *Store) Load(id string) (*Session, error) {
	path := s.layout.SessionStatePath(id)

	var sess Session
	if err := s.codec.Load(path, &sess); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{SessionID: id, Path: path, Op: "load", Err: fmt.Errorf("no such session")}
		}
		return nil, &Error{SessionID: id, Path: path, Op: "load", Err: err}
	}
	if err := s.checkInvariant(&sess); err != nil {
		return nil, &Error{SessionID: id, Path: path, Op: "load", Err: err}
	}
	return &sess, nil
}

// Resume loads a session and flips it back to in-progress. Completed
// sessions cannot be resumed; failed and paused sessions always can.
func (s *Store) Resume(id string) (*Session, error) {
	sess, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case sess.Status == StatusInProgress:
		// A crash mid-run leaves in-progress on disk; resuming it is the
		// recovery path.
	case sess.Status.Resumable():
		sess.Status = StatusInProgress
	default:
		return nil, &Error{SessionID: id, Op: "resume",
			Err: fmt.Errorf("session is %s and cannot be resumed", sess.Status)}
	}

	if err := s.save(sess); err != nil {
		return nil, err
	}
	s.log.WithSessionID(id).Infof("session resumed at step %s", sess.CurrentStep)
	return sess, nil
}

// Complete marks the session completed and persists.
func (s *Store) Complete(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(sess, StatusCompleted)
}

// Pause marks the session paused (deadline hit) and persists. The
// distinction from failed matters: paused means "ran out of time", not
// "errored". Pause is safe to call from the deadline timer goroutine
// while a checkpoint write is in flight.
func (s *Store) Pause(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(sess, StatusPaused)
}

// Fail marks the session failed, persists, and writes a separate
// postmortem error record that is never overwritten by later failures.
func (s *Store) Fail(sess *Session, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(sess, StatusFailed); err != nil {
		return err
	}

	path := s.layout.SessionErrorPath(sess.ID)
	if _, err := os.Stat(path); err == nil {
		return nil // keep the first failure record
	}

	rec := &ErrorRecord{
		Timestamp: s.now().UTC(),
		Step:      sess.CurrentStep,
		Message:   cause.Error(),
		Stack:     string(debug.Stack()),
	}
	if err := s.codec.Save(path, rec); err != nil {
		return &Error{SessionID: sess.ID, Path: path, Op: "write error record", Err: err}
	}
	return nil
}

// LoadErrorRecord reads the postmortem record for a failed session, or nil
// when none exists.
func (s *Store) LoadErrorRecord(id string) (*ErrorRecord, error) {
	path := s.layout.SessionErrorPath(id)

	var rec ErrorRecord
	if err := s.codec.Load(path, &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &Error{SessionID: id, Path: path, Op: "load error record", Err: err}
	}
	return &rec, nil
}

// List loads all sessions in the workspace, oldest first. Session ids are
// time-based so lexical order is creation order.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.layout.SessionsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// transition applies a status change through the status machine and
// persists. Callers must hold s.mu.
func (s *Store) transition(sess *Session, next Status) error {
	if !sess.Status.CanTransitionTo(next) {
		return &Error{SessionID: sess.ID, Op: "transition",
			Err: fmt.Errorf("illegal status transition %s -> %s", sess.Status, next)}
	}
	sess.Status = next
	return s.save(sess)
}

// save enforces the progress invariant, bumps UpdatedAt, and persists the
// session atomically with a round-trip validation. Callers must hold s.mu.
func (s *Store) save(sess *Session) error {
	if err := s.checkInvariant(sess); err != nil {
		return &Error{SessionID: sess.ID, Op: "save", Err: err}
	}

	sess.UpdatedAt = s.now().UTC()
	path := s.layout.SessionStatePath(sess.ID)
	if err := s.codec.Save(path, sess); err != nil {
		return &Error{SessionID: sess.ID, Path: path, Op: "save", Err: err}
	}
	return nil
}

// checkInvariant verifies the session is exactly as far along as its
// checkpoint list proves.
func (s *Store) checkInvariant(sess *Session) error {
	n := len(sess.Checkpoints)
	total := len(Steps())

	for i, cp := range sess.Checkpoints {
		if cp.Step.Index() != i {
			return fmt.Errorf("checkpoint %d records step %s, want %s", i, cp.Step, Steps()[i])
		}
	}

	switch {
	case n > total:
		return fmt.Errorf("%d checkpoints exceed the %d pipeline steps", n, total)
	case n == total:
		// All steps proven; current step stays at the last step.
		if sess.CurrentStep != Steps()[total-1] {
			return fmt.Errorf("fully checkpointed session at unexpected step %s", sess.CurrentStep)
		}
	default:
		if sess.CurrentStep.Index() != n {
			return fmt.Errorf("session at step %s (index %d) but %d checkpoints prove otherwise",
				sess.CurrentStep, sess.CurrentStep.Index(), n)
		}
	}
	return nil
}
