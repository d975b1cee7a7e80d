// Package tracing wraps OpenTelemetry for the decision engine.
//
// New builds a TracerProvider exporting over OTLP gRPC with an always,
// never or ratio sampler wrapped in ParentBased. A disabled configuration
// yields no-op spans. The decision service opens three span kinds:
// bdl.evaluate_case per evaluation, bdl.compose per policy load and
// bdl.run_tests per suite run. Spans carry policy references, verdicts and
// reason codes but never Case values.
package tracing
