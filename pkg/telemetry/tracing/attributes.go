package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanEvaluateCase = "bdl.evaluate_case"
	SpanCompose      = "bdl.compose"
	SpanRunTests     = "bdl.run_tests"
)

// Attribute keys use the "bdl." namespace.
const (
	AttrPolicyID      = "bdl.policy.id"
	AttrPolicyVersion = "bdl.policy.version"
	AttrChainLength   = "bdl.policy.chain_length"
	AttrTraceID       = "bdl.trace_id"
	AttrVerdict       = "bdl.verdict"
	AttrReasonCodes   = "bdl.reason_codes"
	AttrMissingCount  = "bdl.required_fields.count"
	AttrWinner        = "bdl.winner"
	AttrHalted        = "bdl.halted"
	AttrPolicies      = "bdl.policies.loaded"
	AttrTestsTotal    = "bdl.tests.total"
	AttrTestsFailed   = "bdl.tests.failed"
)

// SetPolicyAttributes records which policy version a span concerns.
func SetPolicyAttributes(span trace.Span, policyID, version string) {
	span.SetAttributes(
		attribute.String(AttrPolicyID, policyID),
		attribute.String(AttrPolicyVersion, version),
	)
}

// SetDecisionAttributes records an evaluation result. Case values are
// never attached to spans.
func SetDecisionAttributes(span trace.Span, traceID, verdict string, reasonCodes []string, missing int, winner string, halted bool) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTraceID, traceID),
		attribute.String(AttrVerdict, verdict),
		attribute.StringSlice(AttrReasonCodes, reasonCodes),
		attribute.Int(AttrMissingCount, missing),
		attribute.Bool(AttrHalted, halted),
	}
	if winner != "" {
		attrs = append(attrs, attribute.String(AttrWinner, winner))
	}
	span.SetAttributes(attrs...)
}

// SetTestAttributes records a suite run's totals.
func SetTestAttributes(span trace.Span, total, failed int) {
	span.SetAttributes(
		attribute.Int(AttrTestsTotal, total),
		attribute.Int(AttrTestsFailed, failed),
	)
}
