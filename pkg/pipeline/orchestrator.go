package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/specforge/specforge/pkg/deadline"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/telemetry"
)

// Orchestrator drives a session through the pipeline steps in order.
type Orchestrator struct {
	store   *session.Store
	steps   []Step
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	facts   *telemetry.FactsLog
	tracer  *telemetry.Tracer

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewOrchestrator creates an orchestrator over the given steps. The steps
// must cover the pipeline positions in execution order.
func NewOrchestrator(store *session.Store, steps []Step, log *telemetry.Logger,
	metrics *telemetry.Metrics, facts *telemetry.FactsLog, tracer *telemetry.Tracer) (*Orchestrator, error) {

	expected := session.Steps()
	if len(steps) != len(expected) {
		return nil, fmt.Errorf("orchestrator: %d steps configured, pipeline has %d", len(steps), len(expected))
	}
	for i, s := range steps {
		if s.Name() != expected[i] {
			return nil, fmt.Errorf("orchestrator: step %d is %s, want %s", i, s.Name(), expected[i])
		}
	}

	return &Orchestrator{
		store:   store,
		steps:   steps,
		log:     log.NewComponentLogger("pipeline"),
		metrics: metrics,
		facts:   facts,
		tracer:  tracer,
		now:     time.Now,
	}, nil
}

// Run executes the session's remaining steps. Steps that already hold a
// checkpoint are skipped, which makes resuming after a crash, failure, or
// pause behaviorally identical to an uninterrupted run.
//
// On a step error the session is marked failed and a WorkflowError is
// returned. On deadline expiry the run stops with deadline.ErrTimedOut;
// the deadline controller's save callback has already persisted the
// paused status by the time the context cancellation reaches the step.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session) error {
	log := o.log.WithSessionID(sess.ID)

	ctx, span := o.tracer.StartSessionSpan(ctx, sess.ID)
	defer span.End()

	for _, step := range o.steps {
		name := step.Name()
		if sess.HasCheckpoint(name) {
			log.WithStep(string(name)).Debug("checkpoint present, skipping")
			o.appendFact(telemetry.Fact{Type: telemetry.FactStepSkipped,
				SessionID: sess.ID, Step: string(name)})
			continue
		}
		if err := o.runStep(ctx, log, sess, step); err != nil {
			telemetry.RecordError(span, err)
			return err
		}

		// A step body may outrun the deadline and still return success,
		// with its checkpoint saved. The run must stop here anyway: the
		// timeout callback has already persisted the paused status, so
		// proceeding to complete the session would collide with it.
		if cause := context.Cause(ctx); cause != nil {
			if errors.Is(cause, deadline.ErrTimedOut) {
				log.WithStep(string(name)).Warn("run deadline reached after step, pausing")
				o.appendFact(telemetry.Fact{Type: telemetry.FactSessionPaused,
					SessionID: sess.ID, Step: string(name)})
				telemetry.RecordError(span, deadline.ErrTimedOut)
				return deadline.ErrTimedOut
			}
			telemetry.RecordError(span, cause)
			return cause
		}
	}

	if err := o.store.Complete(sess); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	o.metrics.SessionCompleted(string(session.StatusCompleted))
	o.appendFact(telemetry.Fact{Type: telemetry.FactSessionCompleted, SessionID: sess.ID})
	telemetry.RecordSuccess(span)
	log.Info("pipeline completed")
	return nil
}

// runStep executes one step and persists its checkpoint. The checkpoint is
// written strictly after the step's outputs are durable.
func (o *Orchestrator) runStep(ctx context.Context, log *telemetry.Logger,
	sess *session.Session, step Step) error {

	name := step.Name()
	slog := log.WithStep(string(name))
	slog.Info("step started")
	o.appendFact(telemetry.Fact{Type: telemetry.FactStepStarted,
		SessionID: sess.ID, Step: string(name)})

	ctx, span := o.tracer.StartStepSpan(ctx, sess.ID, string(name))
	defer span.End()

	start := o.now()
	result, err := step.Execute(ctx, sess.PriorOutputs())
	elapsed := o.now().Sub(start)

	if err != nil {
		if errors.Is(context.Cause(ctx), deadline.ErrTimedOut) {
			// The deadline save callback has already flipped the session
			// to paused; progress up to the last checkpoint is intact.
			slog.Warn("run deadline reached, pausing")
			o.metrics.StepExecuted(string(name), "paused", elapsed)
			o.appendFact(telemetry.Fact{Type: telemetry.FactSessionPaused,
				SessionID: sess.ID, Step: string(name)})
			telemetry.RecordError(span, deadline.ErrTimedOut)
			return deadline.ErrTimedOut
		}

		werr := &WorkflowError{Step: name, Err: err}
		slog.WithError(err).Error("step failed")
		o.metrics.StepExecuted(string(name), "failure", elapsed)
		o.appendFact(telemetry.Fact{Type: telemetry.FactStepFailed,
			SessionID: sess.ID, Step: string(name), Message: err.Error()})
		o.appendFact(telemetry.Fact{Type: telemetry.FactSessionFailed, SessionID: sess.ID})
		telemetry.RecordError(span, werr)

		if ferr := o.store.Fail(sess, werr); ferr != nil {
			return errors.Join(werr, ferr)
		}
		o.metrics.SessionCompleted(string(session.StatusFailed))
		return werr
	}

	if err := o.store.RecordOutputs(sess, result.Outputs); err != nil {
		return err
	}
	meta := session.CheckpointMetadata{
		Duration:     elapsed,
		Provider:     result.Provider,
		CostEstimate: result.CostEstimate,
	}
	if err := o.store.SaveCheckpoint(sess, name, sortedPaths(result.Outputs), meta); err != nil {
		return err
	}

	o.metrics.StepExecuted(string(name), "success", elapsed)
	o.appendFact(telemetry.Fact{Type: telemetry.FactStepCompleted,
		SessionID: sess.ID, Step: string(name), Provider: result.Provider,
		Data: map[string]interface{}{"duration_ms": elapsed.Milliseconds()}})
	telemetry.RecordSuccess(span)
	slog.WithProvider(result.Provider).Infof("step completed in %s", elapsed.Round(time.Millisecond))
	return nil
}

// appendFact writes an execution fact, logging rather than failing the run
// when the metrics log is unwritable.
func (o *Orchestrator) appendFact(fact telemetry.Fact) {
	if o.facts == nil {
		return
	}
	if err := o.facts.Append(fact); err != nil {
		o.log.WithError(err).Warn("failed to append execution fact")
	}
}

// sortedPaths flattens an output map into a stable path list for the
// checkpoint record.
func sortedPaths(outputs map[string]string) []string {
	paths := make([]string, 0, len(outputs))
	for _, p := range outputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
