package engine

import (
	"fmt"
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// Status is the result of evaluating one statement.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusViolation Status = "violation"
	StatusMissing   Status = "missing"
	StatusErrored   Status = "errored"
	StatusSkipped   Status = "skipped"
)

// SkipReason explains why a statement produced no outcome.
type SkipReason string

const (
	// SkipProfile means the statement type is not in the profile's evaluate_types.
	SkipProfile SkipReason = "profile"

	// SkipNotApplicable means applies_when evaluated to false.
	SkipNotApplicable SkipReason = "not_applicable"

	// SkipRuleNotTriggered means an ALLOW or FORBID value was not in its set.
	SkipRuleNotTriggered SkipReason = "rule_not_triggered"

	// SkipMissingIgnored means data was missing under the ignore behavior.
	SkipMissingIgnored SkipReason = "missing_ignored"

	// SkipHalted means an earlier winning outcome halted evaluation.
	SkipHalted SkipReason = "halted"

	// SkipParamError means params failed to bind, so nothing was evaluated.
	SkipParamError SkipReason = "param_error"
)

// MissingDataBehavior selects how a profile treats missing data.
type MissingDataBehavior string

const (
	// MissingEnforce uses the statement's missing outcome (or the document default).
	MissingEnforce MissingDataBehavior = "enforce"

	// MissingAsk forces the verdict of a missing outcome to needs_info.
	MissingAsk MissingDataBehavior = "ask"

	// MissingIgnore skips statements whose applies_when or rule operands are missing.
	MissingIgnore MissingDataBehavior = "ignore"
)

// Profile controls which statement types run and how missing data is treated.
type Profile struct {
	Name                string              `json:"name,omitempty" yaml:"name"`
	EvaluateTypes       []ast.StatementType `json:"evaluate_types" yaml:"evaluate_types"`
	MissingDataBehavior MissingDataBehavior `json:"missing_data_behavior" yaml:"missing_data_behavior"`
}

// DefaultProfile evaluates every rule type and enforces missing outcomes.
func DefaultProfile() Profile {
	types := make([]ast.StatementType, 0, len(ast.AllStatementTypes)-1)
	for _, t := range ast.AllStatementTypes {
		if t != ast.StatementDefine {
			types = append(types, t)
		}
	}
	return Profile{
		Name:                "default",
		EvaluateTypes:       types,
		MissingDataBehavior: MissingEnforce,
	}
}

// Includes reports whether statements of type t are evaluated.
func (p Profile) Includes(t ast.StatementType) bool {
	for _, x := range p.EvaluateTypes {
		if x == t {
			return true
		}
	}
	return false
}

// Validate checks the profile against the closed sets.
func (p Profile) Validate() error {
	for _, t := range p.EvaluateTypes {
		if !t.IsValid() {
			return fmt.Errorf("%w: unknown statement type %q", ErrInvalidProfile, t)
		}
	}
	switch p.MissingDataBehavior {
	case MissingEnforce, MissingAsk, MissingIgnore:
		return nil
	}
	return fmt.Errorf("%w: unknown missing data behavior %q", ErrInvalidProfile, p.MissingDataBehavior)
}

// Request is one evaluation: a Case, runtime params and options.
type Request struct {
	// Case is the JSON-like object being decided.
	Case map[string]interface{}

	// Params are runtime values for the document's declared params.
	Params map[string]interface{}

	// Profile overrides the engine's default profile when set.
	Profile *Profile

	// Now fixes the evaluation instant. The engine clock is used when nil.
	Now *time.Time

	// TraceID is echoed into the decision. A new id is generated when empty.
	TraceID string
}

// Route is a routing directive produced by a fired ROUTE statement.
type Route struct {
	StatementID string   `json:"statement_id"`
	To          string   `json:"to"`
	SLAHours    *float64 `json:"sla_hours,omitempty"`
}

// Decision is the result of evaluating a Case against a program.
type Decision struct {
	// Verdict is the outcome of the winning statement, or no_change.
	Verdict ast.Verdict `json:"verdict"`

	// ReasonCodes holds the winning reason code (and TAG labels when configured).
	ReasonCodes []string `json:"reason_codes"`

	// RequiredFields lists every path that resolved to missing data, in
	// evaluation order, without duplicates.
	RequiredFields []string `json:"required_fields"`

	// Tags lists labels added by fired TAG statements.
	Tags []string `json:"tags,omitempty"`

	// Routes lists directives from fired ROUTE statements.
	Routes []Route `json:"routes,omitempty"`

	// TraceID identifies this evaluation.
	TraceID string `json:"trace_id"`

	// Trace is the complete evaluation record.
	Trace *Trace `json:"trace,omitempty"`
}
