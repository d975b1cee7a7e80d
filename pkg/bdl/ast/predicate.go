package ast

import "fmt"

// PredicateKind discriminates the Predicate sum type.
type PredicateKind string

const (
	PredicateAll        PredicateKind = "all"
	PredicateAny        PredicateKind = "any"
	PredicateNot        PredicateKind = "not"
	PredicateComparison PredicateKind = "comparison"
	PredicateTemporal   PredicateKind = "temporal"
)

// Operator is a comparison or temporal operator.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpIn       Operator = "in"
	OpExists   Operator = "exists"
	OpContains Operator = "contains"

	OpBefore  Operator = "before"
	OpAfter   Operator = "after"
	OpWithin  Operator = "within"
	OpElapsed Operator = "elapsed"
)

// ComparisonOperators lists the operators allowed in a Comparison leaf.
var ComparisonOperators = []string{"eq", "neq", "lt", "lte", "gt", "gte", "in", "exists", "contains"}

// TemporalOperators lists the operators allowed in a TemporalComparison leaf.
var TemporalOperators = []string{"before", "after", "within", "elapsed"}

// LimitOperators lists the operators a LIMIT rule may use.
var LimitOperators = []string{"eq", "neq", "lt", "lte", "gt", "gte"}

// IsComparison returns true for comparison leaf operators.
func (op Operator) IsComparison() bool {
	return contains(ComparisonOperators, string(op))
}

// IsTemporal returns true for temporal leaf operators.
func (op Operator) IsTemporal() bool {
	return contains(TemporalOperators, string(op))
}

// IsOrdering returns true for lt/lte/gt/gte.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Predicate is a boolean expression over the Case and derived context.
//
// Children is used by all/any, Operand by not. Comparison and temporal
// leaves read Field, Op and Value; within/elapsed read Duration instead of Value.
type Predicate struct {
	Kind     PredicateKind
	Children []*Predicate
	Operand  *Predicate
	Field    string
	Op       Operator
	Value    *Value
	Duration *Duration
	Location Location
}

// Depth returns the nesting depth of the predicate tree (a leaf has depth 1).
func (p *Predicate) Depth() int {
	if p == nil {
		return 0
	}
	switch p.Kind {
	case PredicateAll, PredicateAny:
		max := 0
		for _, c := range p.Children {
			if d := c.Depth(); d > max {
				max = d
			}
		}
		return max + 1
	case PredicateNot:
		return p.Operand.Depth() + 1
	}
	return 1
}

// String renders the predicate in a compact prefix form for traces.
func (p *Predicate) String() string {
	if p == nil {
		return "true"
	}
	switch p.Kind {
	case PredicateAll, PredicateAny:
		s := string(p.Kind) + "("
		for i, c := range p.Children {
			if i > 0 {
				s += ", "
			}
			s += c.String()
		}
		return s + ")"
	case PredicateNot:
		return "not(" + p.Operand.String() + ")"
	}
	if p.Duration != nil {
		return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Duration)
	}
	if p.Value == nil {
		return fmt.Sprintf("%s %s", p.Field, p.Op)
	}
	return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Value)
}

// DurationUnit is the unit of a temporal duration.
type DurationUnit string

const (
	UnitMinutes DurationUnit = "minutes"
	UnitHours   DurationUnit = "hours"
	UnitDays    DurationUnit = "days"
	UnitWeeks   DurationUnit = "weeks"
	UnitMonths  DurationUnit = "months"
	UnitYears   DurationUnit = "years"
)

// DurationUnits lists the accepted duration units.
var DurationUnits = []string{"minutes", "hours", "days", "weeks", "months", "years"}

// Duration is a calendar-aware span used by within/elapsed.
type Duration struct {
	Amount int
	Unit   DurationUnit
}

// String returns "amount unit".
func (d *Duration) String() string {
	return fmt.Sprintf("%d %s", d.Amount, d.Unit)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
