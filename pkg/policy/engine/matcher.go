package engine

import (
	"mercator-hq/bdl/pkg/bdl/ast"
)

// match evaluates a predicate under three-valued logic. A nil error is a
// definite true or false; a *MissingError or *EvalError is an unresolved
// result.
//
// all is false as soon as one child is false, otherwise an unresolved child
// makes it unresolved (errors take precedence over missing data). any is the
// dual. not passes unresolved results through.
func (c *EvaluationContext) match(p *ast.Predicate, depth int) (bool, error) {
	if p == nil {
		return true, nil
	}
	if depth > c.config.MaxPredicateDepth {
		return false, evalErrorf("predicate", "nesting exceeds maximum depth %d", c.config.MaxPredicateDepth)
	}

	switch p.Kind {
	case ast.PredicateAll:
		return c.matchAll(p, depth)
	case ast.PredicateAny:
		return c.matchAny(p, depth)
	case ast.PredicateNot:
		ok, err := c.match(p.Operand, depth+1)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case ast.PredicateComparison:
		return c.matchComparison(p)
	case ast.PredicateTemporal:
		return c.matchTemporal(p)
	}
	return false, evalErrorf("predicate", "unknown predicate kind %q", p.Kind)
}

func (c *EvaluationContext) matchAll(p *ast.Predicate, depth int) (bool, error) {
	var pending []error
	for _, child := range p.Children {
		ok, err := c.match(child, depth+1)
		if err != nil {
			pending = append(pending, err)
			continue
		}
		if !ok {
			return false, nil
		}
	}
	if err := combine(pending); err != nil {
		return false, err
	}
	return true, nil
}

func (c *EvaluationContext) matchAny(p *ast.Predicate, depth int) (bool, error) {
	var pending []error
	for _, child := range p.Children {
		ok, err := c.match(child, depth+1)
		if err != nil {
			pending = append(pending, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	if err := combine(pending); err != nil {
		return false, err
	}
	return false, nil
}

// matchComparison evaluates a comparison leaf. exists is true for any present
// non-null value and never resolves to missing.
func (c *EvaluationContext) matchComparison(p *ast.Predicate) (bool, error) {
	actual, present := c.Field(p.Field)
	if p.Op == ast.OpExists {
		return present && actual != nil, nil
	}
	if !present {
		return false, &MissingError{Paths: []string{p.Field}}
	}
	expected, err := c.resolve(p.Value, 1)
	if err != nil {
		return false, err
	}
	return evaluateOperator(p.Op, actual, expected)
}
