package composer

import (
	"fmt"
	"strings"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// ErrorKind classifies a composition failure.
type ErrorKind string

const (
	KindCircular          ErrorKind = "circular_extends"
	KindAmbiguousOverride ErrorKind = "ambiguous_override"
	KindParamRedeclared   ErrorKind = "param_redeclared"
	KindTableRedeclared   ErrorKind = "table_redeclared"
	KindChainTooLong      ErrorKind = "chain_too_long"
	KindLoad              ErrorKind = "load_failed"
	KindReference         ErrorKind = "unresolved_reference"
)

// CompositionError blocks use of a policy version whose extends chain cannot
// be merged.
type CompositionError struct {
	// Ref is the document being resolved when the failure occurred
	Ref ast.PolicyRef

	// Chain is the resolution path from the requested ref down to Ref
	Chain []ast.PolicyRef

	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CompositionError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("composition of %s failed (%s): %s", e.Ref, e.Kind, e.Message))
	if len(e.Chain) > 1 {
		parts := make([]string, len(e.Chain))
		for i, r := range e.Chain {
			parts[i] = r.String()
		}
		sb.WriteString(" [chain: " + strings.Join(parts, " -> ") + "]")
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *CompositionError) Unwrap() error {
	return e.Cause
}
