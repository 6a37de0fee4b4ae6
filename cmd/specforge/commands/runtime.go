package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/specforge/specforge/pkg/config"
	"github.com/specforge/specforge/pkg/deadline"
	"github.com/specforge/specforge/pkg/pipeline"
	"github.com/specforge/specforge/pkg/pipeline/steps"
	"github.com/specforge/specforge/pkg/provider"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/telemetry"
	"github.com/specforge/specforge/pkg/workspace"
)

// runtime bundles the wired-up services every command needs.
type runtime struct {
	layout  *workspace.Layout
	cfg     *config.Config
	creds   *config.Credentials
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	facts   *telemetry.FactsLog
	store   *session.Store
}

// newRuntime wires the workspace, configuration, telemetry and session
// store from the global flags.
func newRuntime() (*runtime, error) {
	layout, err := workspace.NewLayout(workspacePath)
	if err != nil {
		return nil, err
	}
	if err := layout.EnsureRoot(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(layout)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Telemetry.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	if jsonOutput {
		logCfg.Format = "json"
	}
	log, err := telemetry.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, err
	}
	if cfg.Telemetry.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(); err != nil {
				log.WithError(err).Warn("metrics endpoint stopped")
			}
		}()
	}

	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		return nil, err
	}

	return &runtime{
		layout:  layout,
		cfg:     cfg,
		creds:   config.DiscoverCredentials(),
		log:     log,
		metrics: metrics,
		tracer:  tracer,
		facts:   telemetry.NewFactsLog(layout.MetricsLogPath()),
		store:   session.NewStore(layout, log),
	}, nil
}

// shutdown flushes telemetry.
func (rt *runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.tracer.Shutdown(ctx); err != nil {
		rt.log.WithError(err).Warn("tracer shutdown failed")
	}
}

// buildProviders constructs the provider chain from the session's
// configured order, skipping providers without credentials.
func (rt *runtime) buildProviders(order []string) ([]provider.Invoker, error) {
	var out []provider.Invoker
	var missing []string

	for _, name := range order {
		if !rt.creds.Has(name) {
			missing = append(missing, name)
			continue
		}
		switch name {
		case provider.AnthropicName:
			p, err := provider.NewAnthropic(rt.creds.APIKey(name), provider.AnthropicOptions{
				Model:     rt.cfg.Models.Anthropic,
				MaxTokens: rt.cfg.Models.MaxTokens,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		case provider.OpenAIName:
			p, err := provider.NewOpenAI(rt.creds.APIKey(name), provider.OpenAIOptions{
				Model:     rt.cfg.Models.OpenAI,
				MaxTokens: rt.cfg.Models.MaxTokens,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		default:
			return nil, fmt.Errorf("unknown provider %q in provider order", name)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no provider credentials found for %v; set %s or %s",
			missing, config.EnvAnthropicAPIKey, config.EnvOpenAIAPIKey)
	}
	if len(missing) > 0 {
		rt.log.Warnf("skipping providers without credentials: %v", missing)
	}
	return out, nil
}

// withWorkspaceLock acquires the workspace lock, waiting up to wait when it
// is busy, runs fn while holding it, and releases. Every durable session
// write, the initial state included, must happen inside fn so no state
// mutation escapes the lock.
func (rt *runtime) withWorkspaceLock(ctx context.Context, wait time.Duration, fn func() error) error {
	lock := workspace.NewLock(rt.layout)
	handle, err := lock.Acquire()
	if err != nil {
		return err
	}
	if handle == nil && wait > 0 {
		fmt.Fprintf(os.Stderr, "workspace is locked, waiting up to %s\n", wait)
		if lock.WaitFor(ctx, wait) {
			handle, err = lock.Acquire()
			if err != nil {
				return err
			}
		}
	}
	if handle == nil {
		return &workspace.LockError{Path: rt.layout.LockPath(), Op: "acquire",
			Err: errors.New("workspace is locked by another live process")}
	}
	defer func() {
		if err := lock.Release(handle); err != nil {
			rt.log.WithError(err).Warn("failed to release workspace lock")
		}
	}()

	return fn()
}

// resumeSession flips a session back to in-progress and records the resume
// in the facts log. The workspace lock must already be held.
func (rt *runtime) resumeSession(id string) (*session.Session, error) {
	sess, err := rt.store.Resume(id)
	if err != nil {
		return nil, err
	}
	if err := rt.facts.Append(telemetry.Fact{Type: telemetry.FactSessionResumed,
		SessionID: sess.ID, Step: string(sess.CurrentStep)}); err != nil {
		rt.log.WithError(err).Warn("failed to append resume fact")
	}
	return sess, nil
}

// runSession executes the session's remaining pipeline steps under the run
// deadline. The workspace lock must already be held.
func (rt *runtime) runSession(ctx context.Context, sess *session.Session) error {
	invokers, err := rt.buildProviders(sess.Config.ProviderOrder)
	if err != nil {
		return err
	}

	policy := provider.DefaultRetryPolicy()
	policy.MaxRetries = sess.Config.MaxRetries
	policy.MaxFallbacks = sess.Config.MaxFallbacks
	selector, err := provider.NewSelector(rt.log, invokers,
		provider.WithRetryPolicy(policy),
		provider.WithMetrics(rt.metrics),
		provider.WithTracer(rt.tracer),
		provider.WithFallbackNotifier(func(ev provider.FallbackEvent) {
			fmt.Fprintf(os.Stderr, "provider %s unavailable, switching to %s\n", ev.From, ev.To)
			rt.metrics.ProviderFallback(ev.From, ev.To)
			if err := rt.facts.Append(telemetry.Fact{
				Type: telemetry.FactProviderFallback, SessionID: sess.ID,
				Provider: ev.To, Message: ev.Err.Error(),
			}); err != nil {
				rt.log.WithError(err).Warn("failed to append fallback fact")
			}
		}))
	if err != nil {
		return err
	}

	pipelineSteps := steps.NewPipeline(rt.layout, sess.ID, selector, rt.log, rt.cfg.Models.MaxTokens)
	orch, err := pipeline.NewOrchestrator(rt.store, pipelineSteps, rt.log,
		rt.metrics, rt.facts, rt.tracer)
	if err != nil {
		return err
	}

	budget := time.Duration(sess.Config.TimeoutMinutes) * time.Minute
	dc := deadline.NewController(budget, func() {
		if err := rt.store.Pause(sess); err != nil {
			rt.log.WithError(err).Error("failed to pause session at deadline")
		}
	})
	ctx = dc.Start(ctx)
	defer dc.Cancel()

	if err := orch.Run(ctx, sess); err != nil {
		if errors.Is(err, deadline.ErrTimedOut) {
			fmt.Printf("run deadline of %s reached; session %s paused\n", budget, sess.ID)
			fmt.Printf("resume with: specforge resume %s\n", sess.ID)
			return nil
		}
		return err
	}

	fmt.Printf("session %s completed\n", sess.ID)
	if final, ok := sess.Outputs["final"]; ok {
		fmt.Printf("final document: %s\n", final)
	}
	return nil
}
