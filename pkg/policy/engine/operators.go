package engine

import (
	"strings"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/types"
)

// evaluateOperator applies a comparison operator. exists is handled by the
// caller since it never reaches a right operand.
func evaluateOperator(op ast.Operator, actual, expected interface{}) (bool, error) {
	switch op {
	case ast.OpEq:
		return types.Equal(actual, expected), nil

	case ast.OpNeq:
		return !types.Equal(actual, expected), nil

	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		return evaluateOrdering(op, actual, expected)

	case ast.OpIn:
		return evaluateIn(actual, expected)

	case ast.OpContains:
		return evaluateContains(actual, expected)
	}
	return false, evalErrorf(string(op), "unsupported comparison operator")
}

// evaluateOrdering compares numbers, or instants when both sides are dates.
func evaluateOrdering(op ast.Operator, actual, expected interface{}) (bool, error) {
	a, b, err := toNumeric(op, actual, expected)
	if err != nil {
		return false, err
	}
	switch op {
	case ast.OpLt:
		return a < b, nil
	case ast.OpLte:
		return a <= b, nil
	case ast.OpGt:
		return a > b, nil
	default:
		return a >= b, nil
	}
}

func toNumeric(op ast.Operator, actual, expected interface{}) (float64, float64, error) {
	a, okA := types.Number(actual)
	b, okB := types.Number(expected)
	if okA && okB {
		return a, b, nil
	}
	ka, kb := types.KindOf(actual), types.KindOf(expected)
	if ka == types.KindTime || kb == types.KindTime {
		if ta, tb, ok := bothInstants(actual, expected); ok {
			return float64(ta.UnixNano()), float64(tb.UnixNano()), nil
		}
	}
	return 0, 0, evalErrorf(string(op), "cannot order %s and %s", ka, kb)
}

func evaluateIn(actual, expected interface{}) (bool, error) {
	set, ok := types.Elements(expected)
	if !ok {
		return false, evalErrorf("in", "right operand is %s, not an array", types.KindOf(expected))
	}
	return types.Member(actual, set), nil
}

func evaluateContains(actual, expected interface{}) (bool, error) {
	if elems, ok := types.Elements(actual); ok {
		return types.Member(expected, elems), nil
	}
	if s, ok := actual.(string); ok {
		sub, ok := expected.(string)
		if !ok {
			return false, evalErrorf("contains", "substring operand is %s, not a string", types.KindOf(expected))
		}
		return strings.Contains(s, sub), nil
	}
	return false, evalErrorf("contains", "left operand is %s, not an array or string", types.KindOf(actual))
}
