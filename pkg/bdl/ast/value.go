package ast

import (
	"fmt"
	"strings"
)

// ValueKind discriminates the Value sum type.
type ValueKind string

const (
	ValueLiteral    ValueKind = "literal"
	ValueField      ValueKind = "field"
	ValueParam      ValueKind = "param"
	ValueLookup     ValueKind = "lookup"
	ValueArithmetic ValueKind = "arithmetic"
	ValueNow        ValueKind = "now"
)

// ArithOp is an arithmetic operator.
type ArithOp string

const (
	ArithAdd ArithOp = "add"
	ArithSub ArithOp = "sub"
	ArithMul ArithOp = "mul"
	ArithDiv ArithOp = "div"
)

// ArithOps lists the arithmetic operators.
var ArithOps = []string{"add", "sub", "mul", "div"}

// Value is an operand expression.
//
// Literal holds a string, float64, bool, nil or []interface{} of those.
// Field and Param carry a path or name; Lookup carries a table id and key
// paths; Arithmetic carries an operator and its operands.
type Value struct {
	Kind     ValueKind
	Literal  interface{}
	Field    string
	Param    string
	Table    string
	Keys     []string
	Arith    ArithOp
	Operands []*Value
	Location Location
}

// NewLiteral returns a literal value node.
func NewLiteral(v interface{}) *Value {
	return &Value{Kind: ValueLiteral, Literal: v}
}

// IsLiteral returns true for literal values.
func (v *Value) IsLiteral() bool {
	return v != nil && v.Kind == ValueLiteral
}

// IsArrayLiteral returns true for literal arrays.
func (v *Value) IsArrayLiteral() bool {
	if !v.IsLiteral() {
		return false
	}
	_, ok := v.Literal.([]interface{})
	return ok
}

// Depth returns the nesting depth of the value tree (a leaf has depth 1).
func (v *Value) Depth() int {
	if v == nil {
		return 0
	}
	if v.Kind != ValueArithmetic {
		return 1
	}
	max := 0
	for _, o := range v.Operands {
		if d := o.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// String renders the value for traces and error messages.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case ValueLiteral:
		if v.Literal == nil {
			return "null"
		}
		if s, ok := v.Literal.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", v.Literal)
	case ValueField:
		return v.Field
	case ValueParam:
		return "param:" + v.Param
	case ValueLookup:
		return fmt.Sprintf("lookup:%s[%s]", v.Table, strings.Join(v.Keys, ","))
	case ValueArithmetic:
		parts := make([]string, len(v.Operands))
		for i, o := range v.Operands {
			parts[i] = o.String()
		}
		return fmt.Sprintf("%s(%s)", v.Arith, strings.Join(parts, ", "))
	case ValueNow:
		return "now"
	}
	return "<invalid>"
}
