// Package telemetry provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, and the append-only execution facts log for
// SpecForge. Observability sinks are configuration-driven and default to
// quiet local operation; the facts log is always on because it is part of
// the workspace contract.
package telemetry
