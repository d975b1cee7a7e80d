package engine

import (
	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/types"
)

// resolve evaluates a value expression. It returns a *MissingError when a
// field or param is absent and an *EvalError for every other failure.
func (c *EvaluationContext) resolve(v *ast.Value, depth int) (interface{}, error) {
	if v == nil {
		return nil, evalErrorf("value", "value is absent")
	}
	if depth > c.config.MaxValueDepth {
		return nil, evalErrorf("value", "nesting exceeds maximum depth %d", c.config.MaxValueDepth)
	}

	switch v.Kind {
	case ast.ValueLiteral:
		return v.Literal, nil

	case ast.ValueField:
		val, ok := c.Field(v.Field)
		if !ok {
			return nil, &MissingError{Paths: []string{v.Field}}
		}
		return val, nil

	case ast.ValueParam:
		if _, declared := c.program.params[v.Param]; !declared {
			return nil, &EvalError{Op: "param", Message: "undeclared param", Cause: &ParamError{
				Param:   v.Param,
				Kind:    ParamUndeclared,
				Message: "not declared by the document",
			}}
		}
		val, ok := c.Params[v.Param]
		if !ok {
			return nil, &MissingError{Paths: []string{"param:" + v.Param}}
		}
		return val, nil

	case ast.ValueNow:
		return c.Now, nil

	case ast.ValueLookup:
		return c.lookup(v)

	case ast.ValueArithmetic:
		return c.arithmetic(v, depth)
	}
	return nil, evalErrorf("value", "unknown value kind %q", v.Kind)
}

// lookup returns the value column of the first row, in table order, whose
// key columns equal the resolved key paths.
func (c *EvaluationContext) lookup(v *ast.Value) (interface{}, error) {
	table := c.table(v.Table)
	if table == nil {
		return nil, evalErrorf("lookup", "unknown table %q", v.Table)
	}
	if len(v.Keys) != len(table.KeyColumns) {
		return nil, evalErrorf("lookup", "table %s takes %d keys, got %d", table.ID, len(table.KeyColumns), len(v.Keys))
	}

	key := make([]interface{}, len(v.Keys))
	var missing []string
	for i, path := range v.Keys {
		val, ok := c.Field(path)
		if !ok {
			missing = append(missing, path)
			continue
		}
		key[i] = val
	}
	if len(missing) > 0 {
		return nil, &MissingError{Paths: missing}
	}

rows:
	for _, row := range table.Rows {
		for i, col := range table.KeyColumns {
			if !types.Equal(row[col], key[i]) {
				continue rows
			}
		}
		return row[table.ValueColumn], nil
	}

	nm := &LookupMissError{Table: table.ID, Key: key}
	if c.config.LookupNoMatch == NoMatchMissing {
		return nil, &MissingError{Paths: []string{"lookup:" + table.ID}}
	}
	return nil, &EvalError{Op: "lookup", Message: "no matching row", Cause: nm}
}

// arithmetic folds operands left to right.
func (c *EvaluationContext) arithmetic(v *ast.Value, depth int) (interface{}, error) {
	if len(v.Operands) < 2 {
		return nil, evalErrorf(string(v.Arith), "needs at least two operands")
	}

	nums := make([]float64, 0, len(v.Operands))
	var errs []error
	for _, o := range v.Operands {
		val, err := c.resolve(o, depth+1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n, ok := types.Number(val)
		if !ok {
			errs = append(errs, evalErrorf(string(v.Arith), "operand %s is %s, not a number", o, types.KindOf(val)))
			continue
		}
		nums = append(nums, n)
	}
	if err := combine(errs); err != nil {
		return nil, err
	}

	acc := nums[0]
	for _, n := range nums[1:] {
		switch v.Arith {
		case ast.ArithAdd:
			acc += n
		case ast.ArithSub:
			acc -= n
		case ast.ArithMul:
			acc *= n
		case ast.ArithDiv:
			if n == 0 {
				return nil, evalErrorf("div", "division by zero")
			}
			acc /= n
		default:
			return nil, evalErrorf("arithmetic", "unknown operator %q", v.Arith)
		}
	}
	if !types.Finite(acc) {
		return nil, evalErrorf(string(v.Arith), "result is not finite")
	}
	return acc, nil
}

// valueSet resolves the values of an ALLOW or FORBID rule; array results are
// flattened into the set.
func (c *EvaluationContext) valueSet(values []*ast.Value) ([]interface{}, error) {
	set := make([]interface{}, 0, len(values))
	var errs []error
	for _, v := range values {
		val, err := c.resolve(v, 1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if elems, ok := types.Elements(val); ok {
			set = append(set, elems...)
			continue
		}
		set = append(set, val)
	}
	if err := combine(errs); err != nil {
		return nil, err
	}
	return set, nil
}
