package engine

import (
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/temporal"
)

// matchTemporal evaluates before/after/within/elapsed. An absent left operand
// is missing data; a present one that is null or unparseable is an
// evaluation error.
//
// within D holds when the instant is after now-D; elapsed D holds when it is
// before now-D.
func (c *EvaluationContext) matchTemporal(p *ast.Predicate) (bool, error) {
	raw, ok := c.Field(p.Field)
	if !ok {
		return false, &MissingError{Paths: []string{p.Field}}
	}
	left, err := temporal.Parse(raw)
	if err != nil {
		return false, &EvalError{Op: string(p.Op), Message: "field " + p.Field, Cause: err}
	}

	switch p.Op {
	case ast.OpBefore, ast.OpAfter:
		v, err := c.resolve(p.Value, 1)
		if err != nil {
			return false, err
		}
		if v == nil {
			return false, &MissingError{Paths: []string{p.Value.String()}}
		}
		right, err := temporal.Parse(v)
		if err != nil {
			return false, &EvalError{Op: string(p.Op), Message: "right operand", Cause: err}
		}
		if p.Op == ast.OpBefore {
			return left.Before(right), nil
		}
		return left.After(right), nil

	case ast.OpWithin, ast.OpElapsed:
		if p.Duration == nil {
			return false, evalErrorf(string(p.Op), "duration is absent")
		}
		bound, err := temporal.Subtract(c.Now, p.Duration)
		if err != nil {
			return false, &EvalError{Op: string(p.Op), Message: "duration", Cause: err}
		}
		if p.Op == ast.OpWithin {
			return left.After(bound), nil
		}
		return left.Before(bound), nil
	}
	return false, evalErrorf(string(p.Op), "unsupported temporal operator")
}

// bothInstants parses two operands as instants.
func bothInstants(a, b interface{}) (time.Time, time.Time, bool) {
	ta, errA := temporal.Parse(a)
	tb, errB := temporal.Parse(b)
	return ta, tb, errA == nil && errB == nil
}
