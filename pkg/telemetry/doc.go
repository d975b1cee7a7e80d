// Package telemetry groups the observability packages of the decision
// engine.
//
//   - logging: slog construction, context fields and redaction of Case data
//   - metrics: Prometheus collector implementing the engine, composer,
//     manager and recorder observer interfaces
//   - tracing: OpenTelemetry spans for evaluation, composition and test runs
//   - health: liveness and readiness endpoints served next to /metrics
//
// Each package is configured from the telemetry section of pkg/config.
package telemetry
