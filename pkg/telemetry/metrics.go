package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for SpecForge. A disabled Metrics is
// a no-op so callers never need nil checks.
type Metrics struct {
	config MetricsConfig

	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec

	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	providerCalls     *prometheus.CounterVec
	providerRetries   *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of pipeline sessions started",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of pipeline sessions finished, by terminal status",
		}, []string{"status"}),

		stepsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_executed_total",
			Help:      "Total number of pipeline steps executed, by step and outcome",
		}, []string{"step", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Pipeline step execution duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"step"}),

		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of generation provider calls, by provider and outcome",
		}, []string{"provider", "outcome"}),
		providerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of provider retry attempts",
		}, []string{"provider"}),
		providerFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Total number of fallbacks from one provider to the next",
		}, []string{"from", "to"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
	}

	collectors := []prometheus.Collector{
		m.sessionsStarted, m.sessionsCompleted,
		m.stepsExecuted, m.stepDuration,
		m.providerCalls, m.providerRetries, m.providerFallbacks, m.providerDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// SessionStarted records the start of a session.
func (m *Metrics) SessionStarted() {
	if m.registry == nil {
		return
	}
	m.sessionsStarted.Inc()
}

// SessionCompleted records a session reaching a terminal or paused status.
func (m *Metrics) SessionCompleted(status string) {
	if m.registry == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(status).Inc()
}

// StepExecuted records one step execution with its outcome and duration.
func (m *Metrics) StepExecuted(step, outcome string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(step, outcome).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// ProviderCall records one provider invocation attempt.
func (m *Metrics) ProviderCall(provider, outcome string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ProviderRetry records a retry against the same provider.
func (m *Metrics) ProviderRetry(provider string) {
	if m.registry == nil {
		return
	}
	m.providerRetries.WithLabelValues(provider).Inc()
}

// ProviderFallback records a fallback from one provider to the next.
func (m *Metrics) ProviderFallback(from, to string) {
	if m.registry == nil {
		return
	}
	m.providerFallbacks.WithLabelValues(from, to).Inc()
}

// Handler returns an HTTP handler exposing the metrics, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a blocking HTTP server on the configured listen address.
// It returns immediately when metrics are disabled.
func (m *Metrics) Serve() error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	return http.ListenAndServe(m.config.ListenAddress, mux)
}
