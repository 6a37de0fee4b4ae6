package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specforge/specforge/pkg/telemetry"
)

// FallbackEvent describes one automatic provider substitution.
type FallbackEvent struct {
	// From is the provider that was abandoned.
	From string

	// To is the provider taking over.
	To string

	// Err is the failure that exhausted the previous provider.
	Err error
}

// Selector walks a provider priority order. Transient failures are retried
// on the active provider with exponential backoff; when a provider's retry
// budget is exhausted the selector falls back to the next one. Permanent
// failures propagate immediately without burning the fallback budget.
//
// The active provider is sticky: once the selector falls back, later
// requests start from the provider that last succeeded.
type Selector struct {
	providers []Invoker
	policy    RetryPolicy
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer

	// onFallback, when set, is called for every provider substitution so
	// the caller can surface it to the user.
	onFallback func(FallbackEvent)

	// active is the index of the current provider in priority order.
	active int

	// sleep pauses between retries, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Selector.
type Option func(*Selector)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Selector) { s.policy = p }
}

// WithFallbackNotifier registers a callback invoked on every provider
// substitution.
func WithFallbackNotifier(fn func(FallbackEvent)) Option {
	return func(s *Selector) { s.onFallback = fn }
}

// WithMetrics records per-attempt call metrics and retry counts.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

// WithTracer wraps each provider's attempt loop in a provider span.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Selector) { s.tracer = t }
}

// NewSelector creates a selector over providers in priority order. At least
// one provider is required.
func NewSelector(log *telemetry.Logger, providers []Invoker, opts ...Option) (*Selector, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("provider selector: at least one provider is required")
	}
	s := &Selector{
		providers: providers,
		policy:    DefaultRetryPolicy(),
		log:       log.NewComponentLogger("provider"),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Active returns the name of the current provider.
func (s *Selector) Active() string {
	return s.providers[s.active].Name()
}

// Invoke services one request through the provider chain. The returned
// response names the provider that actually produced it.
func (s *Selector) Invoke(ctx context.Context, req *Request) (*Response, error) {
	fallbacks := 0
	var lastErr error

	for {
		p := s.providers[s.active]
		resp, err := s.invokeProvider(ctx, p, req)
		if err == nil {
			resp.Provider = p.Name()
			return resp, nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		next := s.active + 1
		if next >= len(s.providers) || fallbacks >= s.policy.MaxFallbacks {
			return nil, fmt.Errorf("all providers exhausted, last tried %s: %w", p.Name(), lastErr)
		}

		ev := FallbackEvent{From: p.Name(), To: s.providers[next].Name(), Err: err}
		s.log.WithProvider(ev.From).WithError(err).
			Warnf("provider exhausted, falling back to %s", ev.To)
		if s.onFallback != nil {
			s.onFallback(ev)
		}

		s.active = next
		fallbacks++
	}
}

// invokeProvider runs one provider's attempt loop under a provider span
// when tracing is wired.
func (s *Selector) invokeProvider(ctx context.Context, p Invoker, req *Request) (*Response, error) {
	if s.tracer == nil {
		return s.invokeWithRetries(ctx, p, req)
	}

	ctx, span := s.tracer.StartProviderSpan(ctx, p.Name(), req.Operation)
	defer span.End()

	resp, err := s.invokeWithRetries(ctx, p, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span)
	return resp, nil
}

// invokeWithRetries runs the per-provider attempt loop: one initial attempt
// plus MaxRetries retries, backing off between them. A permanent error ends
// the loop immediately.
func (s *Selector) invokeWithRetries(ctx context.Context, p Invoker, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= s.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			d := s.policy.delay(attempt-1, retryHint(lastErr))
			s.log.WithProvider(p.Name()).WithField("operation", req.Operation).
				Debugf("retry %d/%d after %s", attempt, s.policy.MaxRetries, d)
			if s.metrics != nil {
				s.metrics.ProviderRetry(p.Name())
			}
			if err := s.sleep(ctx, d); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := p.Invoke(ctx, req)
		if s.metrics != nil {
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			s.metrics.ProviderCall(p.Name(), outcome, time.Since(start))
		}
		if err == nil {
			return resp, nil
		}
		if IsPermanent(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// retryHint extracts a backend Retry-After hint from err, when present.
func retryHint(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
