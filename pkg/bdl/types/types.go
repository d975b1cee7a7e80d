// Package types implements the typed value rules shared by the validator and
// the engine: numeric conversion, typed equality and param type conformance.
//
// BDL values are plain Go data as produced by YAML/JSON decoding: string,
// numbers of any Go numeric type (and json.Number), bool, nil, time.Time,
// []interface{} and map[string]interface{}.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/temporal"
)

// Kind is the runtime kind of a value.
type Kind string

const (
	KindNull    Kind = "null"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindTime    Kind = "time"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindUnknown Kind = "unknown"
)

// KindOf classifies v.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBoolean
	case time.Time:
		return KindTime
	case []interface{}, []string:
		return KindArray
	case map[string]interface{}:
		return KindObject
	}
	if _, ok := Number(v); ok {
		return KindNumber
	}
	return KindUnknown
}

// Number converts a numeric value to float64. Strings are not coerced.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Elements returns the members of an array value.
func Elements(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case []interface{}:
		return a, true
	case []string:
		out := make([]interface{}, len(a))
		for i, s := range a {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Equal reports typed equality: numbers compare numerically across Go types,
// strings, booleans and null compare only with their own kind, and instants
// compare with instants or with strings that parse as dates. Values of
// different kinds are never equal.
func Equal(a, b interface{}) bool {
	ka, kb := KindOf(a), KindOf(b)

	if ka == KindTime || kb == KindTime {
		ta, errA := temporal.Parse(a)
		tb, errB := temporal.Parse(b)
		return errA == nil && errB == nil && ta.Equal(tb)
	}
	if ka != kb {
		return false
	}

	switch ka {
	case KindNull:
		return true
	case KindString:
		return a.(string) == b.(string)
	case KindBoolean:
		return a.(bool) == b.(bool)
	case KindNumber:
		na, _ := Number(a)
		nb, _ := Number(b)
		return na == nb
	case KindArray:
		ea, _ := Elements(a)
		eb, _ := Elements(b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if !Equal(ea[i], eb[i]) {
				return false
			}
		}
		return true
	case KindObject:
		ma, mb := a.(map[string]interface{}), b.(map[string]interface{})
		if len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}
	return false
}

// Member reports whether v equals any element of set.
func Member(v interface{}, set []interface{}) bool {
	for _, e := range set {
		if Equal(v, e) {
			return true
		}
	}
	return false
}

// Finite rejects NaN and infinities.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Conform checks v against a declared param type and returns the normalized
// value: numbers as float64, dates and datetimes as UTC-anchored time.Time.
func Conform(t ast.ParamType, v interface{}) (interface{}, error) {
	switch t {
	case ast.ParamTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ast.ParamTypeNumber:
		if n, ok := Number(v); ok {
			if !Finite(n) {
				return nil, fmt.Errorf("number must be finite")
			}
			return n, nil
		}
	case ast.ParamTypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case ast.ParamTypeDate:
		if s, ok := v.(string); ok {
			if !temporal.IsDate(s) {
				return nil, fmt.Errorf("expected date (YYYY-MM-DD), got %q", s)
			}
			return temporal.ParseString(s)
		}
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
	case ast.ParamTypeDateTime:
		if s, ok := v.(string); ok {
			tm, err := temporal.ParseString(s)
			if err != nil {
				return nil, err
			}
			return tm, nil
		}
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
	default:
		return nil, fmt.Errorf("unknown param type %q", t)
	}
	return nil, fmt.Errorf("expected %s, got %s", t, KindOf(v))
}
