package engine

import (
	"strconv"
	"strings"
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/types"
)

// EvaluationContext holds the per-evaluation state: the Case, the derived
// context written by DEFINE statements, bound params and the fixed instant.
// It is created for one Evaluate call and never shared.
type EvaluationContext struct {
	Case    map[string]interface{}
	Derived map[string]interface{}
	Params  map[string]interface{}
	Now     time.Time

	program *Program
	config  *Config

	evidence       map[string]bool
	evidenceErr    error
	evidenceLoaded bool
}

func newEvaluationContext(prog *Program, config *Config, c, params map[string]interface{}, now time.Time) *EvaluationContext {
	if c == nil {
		c = map[string]interface{}{}
	}
	return &EvaluationContext{
		Case:    c,
		Derived: make(map[string]interface{}),
		Params:  params,
		Now:     now,
		program: prog,
		config:  config,
	}
}

// Field resolves a dot path. Values written by DEFINE statements shadow the
// Case. The boolean is false when the path is absent; a present null yields
// (nil, true).
func (c *EvaluationContext) Field(path string) (interface{}, bool) {
	if v, ok := lookupPath(c.Derived, path); ok {
		return v, true
	}
	return lookupPath(c.Case, path)
}

// lookupPath walks a dot path through nested objects. Numeric segments index
// into arrays.
func lookupPath(root map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var cur interface{} = root
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			elems, ok := types.Elements(node)
			if !ok {
				return nil, false
			}
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(elems) {
				return nil, false
			}
			cur = elems[i]
		}
	}
	return cur, true
}

// setPath writes v at a dot path, creating intermediate objects.
func setPath(root map[string]interface{}, path string, v interface{}) {
	parts := strings.Split(path, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = v
}

// evidenceSet returns the evidence identifiers present in the Case. Entries
// may be strings or objects carrying "id" and/or "type". An absent evidence
// field means no evidence was supplied.
func (c *EvaluationContext) evidenceSet() (map[string]bool, error) {
	if c.evidenceLoaded {
		return c.evidence, c.evidenceErr
	}
	c.evidenceLoaded = true
	c.evidence = make(map[string]bool)

	raw, ok := lookupPath(c.Case, c.config.EvidenceField)
	if !ok || raw == nil {
		return c.evidence, nil
	}
	elems, ok := types.Elements(raw)
	if !ok {
		c.evidenceErr = evalErrorf("require_evidence", "%s must be an array, got %s", c.config.EvidenceField, types.KindOf(raw))
		return c.evidence, c.evidenceErr
	}
	for _, e := range elems {
		switch item := e.(type) {
		case string:
			c.evidence[item] = true
		case map[string]interface{}:
			for _, key := range []string{"id", "type"} {
				if s, ok := item[key].(string); ok && s != "" {
					c.evidence[s] = true
				}
			}
		}
	}
	return c.evidence, nil
}

// table returns a table of the program by id.
func (c *EvaluationContext) table(id string) *ast.TableDefinition {
	return c.program.tables[id]
}
