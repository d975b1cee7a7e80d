package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNilProgram indicates Evaluate was called without a compiled program.
	ErrNilProgram = errors.New("program is nil")

	// ErrNotComposed indicates a document that extends another was compiled
	// before composition merged its ancestors.
	ErrNotComposed = errors.New("document has not been composed")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrInvalidProfile indicates an evaluation profile outside the closed sets.
	ErrInvalidProfile = errors.New("invalid evaluation profile")
)

// MissingError reports data that a predicate or value needed but the Case,
// derived context or params did not supply. It is the third truth value of
// predicate evaluation, not a failure.
type MissingError struct {
	Paths []string
}

// Error returns the error message.
func (e *MissingError) Error() string {
	return fmt.Sprintf("missing data: %s", strings.Join(e.Paths, ", "))
}

// EvalError indicates a runtime evaluation failure inside one statement:
// a type mismatch, division by zero, a lookup miss or an undeclared reference.
type EvalError struct {
	StatementID string
	Op          string
	Message     string
	Cause       error
}

// Error returns the error message.
func (e *EvalError) Error() string {
	var b strings.Builder
	if e.StatementID != "" {
		fmt.Fprintf(&b, "statement %s: ", e.StatementID)
	}
	if e.Op != "" {
		fmt.Fprintf(&b, "%s: ", e.Op)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *EvalError) Unwrap() error {
	return e.Cause
}

func evalErrorf(op, format string, args ...interface{}) *EvalError {
	return &EvalError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// ParamErrorKind classifies a param binding failure.
type ParamErrorKind string

const (
	ParamRequired     ParamErrorKind = "required"
	ParamTypeMismatch ParamErrorKind = "type_mismatch"
	ParamUnknown      ParamErrorKind = "unknown"
	ParamUndeclared   ParamErrorKind = "undeclared"
)

// ParamError indicates a runtime param could not be bound.
type ParamError struct {
	Param   string
	Kind    ParamErrorKind
	Message string
}

// Error returns the error message.
func (e *ParamError) Error() string {
	return fmt.Sprintf("param %s: %s", e.Param, e.Message)
}

// ReasonCode returns the reason code reported in a decision for this error.
func (e *ParamError) ReasonCode() string {
	switch e.Kind {
	case ParamRequired:
		return "PARAM_REQUIRED:" + e.Param
	case ParamTypeMismatch:
		return "PARAM_TYPE_MISMATCH:" + e.Param
	case ParamUnknown:
		return "PARAM_UNKNOWN:" + e.Param
	}
	return "PARAM_UNDECLARED:" + e.Param
}

// LookupMissError indicates a lookup found no row for its key.
type LookupMissError struct {
	Table string
	Key   []interface{}
}

// Error returns the error message.
func (e *LookupMissError) Error() string {
	return fmt.Sprintf("table %s has no row for key %v", e.Table, e.Key)
}

// IsMissing reports whether err resolves to missing data.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}

// MissingPaths returns the paths carried by a MissingError, or nil.
func MissingPaths(err error) []string {
	var me *MissingError
	if errors.As(err, &me) {
		return me.Paths
	}
	return nil
}

// combine folds unresolved results of sibling operands: any failure other
// than missing data wins; otherwise the missing paths are merged.
func combine(errs []error) error {
	var paths []string
	seen := make(map[string]bool)
	for _, err := range errs {
		var me *MissingError
		if !errors.As(err, &me) {
			return err
		}
		for _, p := range me.Paths {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return &MissingError{Paths: paths}
}
