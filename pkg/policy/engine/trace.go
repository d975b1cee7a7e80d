package engine

import (
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// Trace records how a decision was reached. It is self-contained: given the
// same program, Case, params, profile and now, a replay produces an identical
// trace apart from StartedAt and Duration.
type Trace struct {
	TraceID           string                 `json:"trace_id"`
	Policy            ast.PolicyRef          `json:"policy"`
	Chain             []ast.PolicyRef        `json:"chain"`
	Now               time.Time              `json:"now"`
	InEffectiveWindow bool                   `json:"in_effective_window"`
	Params            map[string]interface{} `json:"params"`
	ParamErrors       []string               `json:"param_errors,omitempty"`
	Profile           Profile                `json:"profile"`

	// Statements are listed in evaluation order: DEFINEs first, then the
	// remaining statements by descending priority.
	Statements []StatementTrace `json:"statements"`

	Winner         string      `json:"winner,omitempty"`
	Halted         bool        `json:"halted,omitempty"`
	Verdict        ast.Verdict `json:"verdict"`
	ReasonCodes    []string    `json:"reason_codes"`
	RequiredFields []string    `json:"required_fields"`
	Tags           []string    `json:"tags,omitempty"`
	Routes         []Route     `json:"routes,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// StatementTrace records the evaluation of one statement.
type StatementTrace struct {
	ID        string            `json:"id"`
	Type      ast.StatementType `json:"type"`
	Priority  int               `json:"priority"`
	Origin    ast.PolicyRef     `json:"origin"`
	Inherited bool              `json:"inherited"`

	Status     Status     `json:"status"`
	SkipReason SkipReason `json:"skip_reason,omitempty"`
	Bucket     ast.Bucket `json:"bucket,omitempty"`

	// Outcome is the outcome selected for Bucket; Implicit marks an outcome
	// that came from a builtin fallback rather than the statement or defaults.
	Outcome  *ast.Outcome `json:"outcome,omitempty"`
	Implicit bool         `json:"implicit,omitempty"`

	// Competing is true when the outcome took part in aggregation.
	Competing bool `json:"competing"`

	Missing []string               `json:"missing,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Defined map[string]interface{} `json:"defined,omitempty"`
	Route   *Route                 `json:"route,omitempty"`
	Tags    []string               `json:"tags,omitempty"`

	Citations []string `json:"citations,omitempty"`
}

func newStatementTrace(s *ast.Statement, root ast.PolicyRef) StatementTrace {
	return StatementTrace{
		ID:        s.ID,
		Type:      s.Type,
		Priority:  s.Priority,
		Origin:    s.Origin,
		Inherited: !s.Origin.IsZero() && s.Origin != root,
		Citations: s.Citations,
	}
}

func (st *StatementTrace) skip(reason SkipReason) {
	st.Status = StatusSkipped
	st.SkipReason = reason
}
