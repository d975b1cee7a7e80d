package engine

import (
	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/types"
)

// ruleResult is the outcome of executing a statement body. An empty bucket
// with a nil err means the rule did not trigger.
type ruleResult struct {
	bucket  ast.Bucket
	err     error
	defined map[string]interface{}
	route   *Route
	tags    []string
}

func fired(b ast.Bucket) ruleResult {
	return ruleResult{bucket: b}
}

func unresolved(err error) ruleResult {
	if IsMissing(err) {
		return ruleResult{bucket: ast.BucketMissing, err: err}
	}
	return ruleResult{bucket: ast.BucketError, err: err}
}

// execute runs the type-specific rule of s.
func (c *EvaluationContext) execute(s *ast.Statement) ruleResult {
	r := s.Rule
	if r == nil {
		return unresolved(evalErrorf(string(s.Type), "rule is absent"))
	}

	switch s.Type {
	case ast.StatementDefine:
		return c.executeDefine(r)
	case ast.StatementRequire:
		return c.executeRequire(r)
	case ast.StatementAllow, ast.StatementForbid:
		return c.executeMembership(s.Type, r)
	case ast.StatementLimit:
		return c.executeLimit(r)
	case ast.StatementRoute:
		res := fired(ast.BucketApply)
		res.route = &Route{StatementID: s.ID, To: r.To, SLAHours: r.SLAHours}
		return res
	case ast.StatementTag:
		res := fired(ast.BucketApply)
		res.tags = r.Add
		return res
	}
	return unresolved(evalErrorf(string(s.Type), "unknown statement type"))
}

// executeDefine resolves each assignment in order so later entries can read
// earlier ones. Entries that fail leave their target unset.
func (c *EvaluationContext) executeDefine(r *ast.Rule) ruleResult {
	defined := make(map[string]interface{}, len(r.Set))
	var errs []error
	for _, a := range r.Set {
		v, err := c.resolve(a.Value, 1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		setPath(c.Derived, a.Target, v)
		defined[a.Target] = v
	}
	if err := combine(errs); err != nil {
		res := unresolved(err)
		res.defined = defined
		return res
	}
	res := fired(ast.BucketApply)
	res.defined = defined
	return res
}

// executeRequire reports every absent or null field and every evidence id
// not present in the Case.
func (c *EvaluationContext) executeRequire(r *ast.Rule) ruleResult {
	var missing []string
	for _, path := range r.RequireFields {
		if v, ok := c.Field(path); !ok || v == nil {
			missing = append(missing, path)
		}
	}
	if len(r.RequireEvidence) > 0 {
		have, err := c.evidenceSet()
		if err != nil {
			return unresolved(err)
		}
		for _, id := range r.RequireEvidence {
			if !have[id] {
				missing = append(missing, "evidence:"+id)
			}
		}
	}
	if len(missing) > 0 {
		return unresolved(&MissingError{Paths: missing})
	}
	return fired(ast.BucketApply)
}

// executeMembership tests the field against the value set. ALLOW applies on
// membership; FORBID is violated on membership. Non-membership triggers nothing.
func (c *EvaluationContext) executeMembership(t ast.StatementType, r *ast.Rule) ruleResult {
	actual, ok := c.Field(r.Field)
	if !ok {
		return unresolved(&MissingError{Paths: []string{r.Field}})
	}
	set, err := c.valueSet(r.Values)
	if err != nil {
		return unresolved(err)
	}
	if !types.Member(actual, set) {
		return ruleResult{}
	}
	if t == ast.StatementAllow {
		return fired(ast.BucketApply)
	}
	return fired(ast.BucketViolation)
}

// executeLimit compares the field against the bound: apply when satisfied,
// violation otherwise.
func (c *EvaluationContext) executeLimit(r *ast.Rule) ruleResult {
	actual, ok := c.Field(r.Field)
	if !ok {
		return unresolved(&MissingError{Paths: []string{r.Field}})
	}
	bound, err := c.resolve(r.Value, 1)
	if err != nil {
		return unresolved(err)
	}
	satisfied, err := evaluateOperator(r.Op, actual, bound)
	if err != nil {
		return unresolved(err)
	}
	if satisfied {
		return fired(ast.BucketApply)
	}
	return fired(ast.BucketViolation)
}
