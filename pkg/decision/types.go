package decision

import (
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/suite"
)

// EvaluateRequest selects a policy version and supplies the Case to decide.
type EvaluateRequest struct {
	// PolicyID and Version select the policy. See the package doc.
	PolicyID string
	Version  string

	Case   map[string]interface{}
	Params map[string]interface{}

	// Profile overrides the engine's default profile.
	Profile *engine.Profile

	// Now fixes the evaluation instant.
	Now *time.Time

	// IncludeTrace returns the full trace in the response.
	IncludeTrace bool
}

// EvaluateResponse is the decision for one Case.
type EvaluateResponse struct {
	Policy         ast.PolicyRef  `json:"policy"`
	Verdict        ast.Verdict    `json:"verdict"`
	ReasonCodes    []string       `json:"reason_codes"`
	RequiredFields []string       `json:"required_fields"`
	Tags           []string       `json:"tags,omitempty"`
	Routes         []engine.Route `json:"routes,omitempty"`
	TraceID        string         `json:"trace_id"`

	// Persisted reports whether the trace was handed to the recorder.
	Persisted bool `json:"persisted"`

	Trace *engine.Trace `json:"trace,omitempty"`
}

// TestList is the test suite summary of one policy version.
type TestList struct {
	Policy ast.PolicyRef   `json:"policy"`
	Tests  []suite.Summary `json:"tests"`
}

// TestObserver receives test run results.
type TestObserver interface {
	RecordTestRun(policyID string, passed, failed int)
}
