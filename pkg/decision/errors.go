package decision

import (
	"errors"
	"fmt"

	"mercator-hq/bdl/pkg/bdl/ast"
)

var (
	// ErrTracesDisabled is returned by trace lookups when no recorder is
	// configured.
	ErrTracesDisabled = errors.New("trace storage is not configured")

	// ErrNoSuite is returned when a policy version ships no test suite.
	ErrNoSuite = errors.New("policy version has no test suite")
)

// CaseError reports a Case rejected by the policy's JSON Schema before
// evaluation.
type CaseError struct {
	Policy ast.PolicyRef
	Cause  error
}

// Error implements the error interface.
func (e *CaseError) Error() string {
	return fmt.Sprintf("case rejected by schema of %s: %v", e.Policy, e.Cause)
}

// Unwrap returns the underlying validation error.
func (e *CaseError) Unwrap() error {
	return e.Cause
}
