package validator

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"mercator-hq/bdl/pkg/bdl/ast"
	bdlErrors "mercator-hq/bdl/pkg/bdl/errors"
)

// Default nesting bounds. Documents beyond these are rejected at load time so
// evaluation never recurses without limit.
const (
	DefaultMaxPredicateDepth = 32
	DefaultMaxValueDepth     = 64
)

// StructuralValidator checks shapes: required fields, closed enums, rule
// bodies per statement type, duplicates and table columns.
type StructuralValidator struct {
	errors            *bdlErrors.ErrorList
	maxPredicateDepth int
	maxValueDepth     int
}

// NewStructuralValidator creates a structural validator with default bounds.
func NewStructuralValidator() *StructuralValidator {
	return &StructuralValidator{
		maxPredicateDepth: DefaultMaxPredicateDepth,
		maxValueDepth:     DefaultMaxValueDepth,
	}
}

// Check runs the structural pass.
func (v *StructuralValidator) Check(doc *ast.Document) *bdlErrors.ErrorList {
	v.errors = bdlErrors.NewErrorList()

	v.checkMetadata(doc)
	v.checkParams(doc)
	v.checkTables(doc)
	v.checkStatements(doc)

	return v.errors
}

func (v *StructuralValidator) checkMetadata(doc *ast.Document) {
	if doc.PolicyID == "" {
		v.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural, "policy_id must not be empty",
			doc.Location, bdlErrors.SuggestMissingField("policy_id", "expense-policy"))
	}
	if doc.Version == "" {
		v.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural, "version must not be empty",
			doc.Location, bdlErrors.SuggestMissingField("version", "1.0.0"))
	} else if _, err := semver.NewVersion(doc.Version); err != nil {
		v.errors.AddWarning(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("version '%s' is not a semantic version; it will sort lexically", doc.Version), doc.Location)
	}
	if !doc.Effective.From.IsZero() && !doc.Effective.To.IsZero() && doc.Effective.To.Before(doc.Effective.From) {
		v.errors.AddError(bdlErrors.ErrorTypeStructural, "effective.to is before effective.from", doc.Location)
	}
	if doc.Extends != nil && doc.Extends.PolicyID == doc.PolicyID && doc.Extends.Version == doc.Version {
		v.errors.AddError(bdlErrors.ErrorTypeStructural, "document extends itself", doc.Location)
	}
	v.checkOutcome(doc.Defaults.OnMissing, "defaults.on_missing", doc.Location)
	v.checkOutcome(doc.Defaults.OnError, "defaults.on_error", doc.Location)
	v.checkOutcome(doc.Defaults.OnApply, "defaults.on_apply", doc.Location)
	v.checkOutcome(doc.Defaults.OnViolation, "defaults.on_violation", doc.Location)
}

func (v *StructuralValidator) checkParams(doc *ast.Document) {
	seen := make(map[string]bool)
	for _, p := range doc.Params {
		if p.Name == "" {
			v.errors.AddError(bdlErrors.ErrorTypeStructural, "param name must not be empty", p.Location)
			continue
		}
		if seen[p.Name] {
			v.errors.AddError(bdlErrors.ErrorTypeSemantic, fmt.Sprintf("duplicate param '%s'", p.Name), p.Location)
		}
		seen[p.Name] = true

		if !p.Type.IsValid() {
			v.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
				fmt.Sprintf("param '%s' has unknown type '%s'", p.Name, p.Type), p.Location,
				bdlErrors.Suggest(string(p.Type), ast.ValidParamTypes))
		}
		if p.Required && p.HasDefault {
			v.errors.AddError(bdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("param '%s' is required and must not declare a default", p.Name), p.Location)
		}
	}
}

func (v *StructuralValidator) checkTables(doc *ast.Document) {
	seen := make(map[string]bool)
	for _, t := range doc.Tables {
		if t.ID == "" {
			v.errors.AddError(bdlErrors.ErrorTypeStructural, "table id must not be empty", t.Location)
			continue
		}
		if seen[t.ID] {
			v.errors.AddError(bdlErrors.ErrorTypeSemantic, fmt.Sprintf("duplicate table '%s'", t.ID), t.Location)
		}
		seen[t.ID] = true

		if len(t.KeyColumns) == 0 {
			v.errors.AddError(bdlErrors.ErrorTypeStructural, fmt.Sprintf("table '%s' has no key_columns", t.ID), t.Location)
		}
		if t.ValueColumn == "" {
			v.errors.AddError(bdlErrors.ErrorTypeStructural, fmt.Sprintf("table '%s' has no value_column", t.ID), t.Location)
		}
		cols := make(map[string]bool)
		for _, c := range t.Columns() {
			if cols[c] {
				v.errors.AddError(bdlErrors.ErrorTypeStructural,
					fmt.Sprintf("table '%s' declares column '%s' more than once", t.ID, c), t.Location)
			}
			cols[c] = true
		}
		for i, row := range t.Rows {
			for _, c := range t.Columns() {
				if _, ok := row[c]; !ok {
					v.errors.AddError(bdlErrors.ErrorTypeStructural,
						fmt.Sprintf("table '%s' row %d is missing column '%s'", t.ID, i+1, c), t.Location)
				}
			}
			for c := range row {
				if !cols[c] {
					v.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
						fmt.Sprintf("table '%s' row %d has undeclared column '%s'", t.ID, i+1, c), t.Location,
						bdlErrors.Suggest(c, t.Columns()))
				}
			}
		}
	}
}

func (v *StructuralValidator) checkStatements(doc *ast.Document) {
	seen := make(map[string]bool)
	for _, s := range doc.Statements {
		if s.ID == "" {
			v.errors.AddError(bdlErrors.ErrorTypeStructural, "statement id must not be empty", s.Location)
		} else if seen[s.ID] {
			v.errors.AddError(bdlErrors.ErrorTypeSemantic, fmt.Sprintf("duplicate statement id '%s'", s.ID), s.Location)
		}
		seen[s.ID] = true

		if !s.Type.IsValid() {
			v.errors.AddError(bdlErrors.ErrorTypeStructural,
				fmt.Sprintf("statement '%s' has invalid type '%s'", s.ID, s.Type), s.Location)
			continue
		}
		if s.Rule == nil {
			v.errors.AddError(bdlErrors.ErrorTypeStructural,
				fmt.Sprintf("statement '%s' has no rule body", s.ID), s.Location)
		} else {
			v.checkRule(s)
		}

		if s.AppliesWhen != nil {
			v.checkPredicate(s.AppliesWhen, s.ID, 1)
		}
		v.checkOutcomes(s)
	}
}

func (v *StructuralValidator) checkOutcomes(s *ast.Statement) {
	for _, b := range []ast.Bucket{ast.BucketApply, ast.BucketViolation, ast.BucketMissing, ast.BucketError} {
		v.checkOutcome(s.Outcomes.Get(b), fmt.Sprintf("statement '%s' outcomes.%s", s.ID, b), s.Location)
	}

	switch {
	case s.Type == ast.StatementDefine && s.Outcomes.Count() > 0:
		v.errors.AddWarning(bdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("DEFINE statement '%s' declares outcomes; they are never used", s.ID), s.Location)
	case s.Type != ast.StatementDefine && s.Outcomes.Count() == 0:
		v.errors.AddWarning(bdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("statement '%s' has no outcome slot; it falls back to document defaults", s.ID), s.Location)
	}
}

func (v *StructuralValidator) checkOutcome(out *ast.Outcome, what string, loc ast.Location) {
	if out == nil {
		return
	}
	if !out.Verdict.IsValid() {
		v.errors.AddError(bdlErrors.ErrorTypeStructural, fmt.Sprintf("%s has invalid verdict '%s'", what, out.Verdict), loc)
	}
}

func (v *StructuralValidator) checkRule(s *ast.Statement) {
	r := s.Rule
	bad := func(format string, args ...interface{}) {
		v.errors.AddError(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("%s statement '%s': %s", s.Type, s.ID, fmt.Sprintf(format, args...)), r.Location)
	}

	switch s.Type {
	case ast.StatementDefine:
		if len(r.Set) == 0 {
			bad("rule.set must not be empty")
		}
		for _, a := range r.Set {
			if a.Target == "" {
				bad("set entry has no target")
			}
			if a.Value == nil {
				bad("set entry '%s' has no value", a.Target)
			} else {
				v.checkValue(a.Value, s.ID, 1)
			}
		}
	case ast.StatementRequire:
		if len(r.RequireFields) == 0 && len(r.RequireEvidence) == 0 {
			bad("rule needs require_fields or require_evidence")
		}
	case ast.StatementAllow, ast.StatementForbid:
		if r.Field == "" {
			bad("rule.field is required")
		}
		if len(r.Values) == 0 {
			bad("rule.values must not be empty")
		}
		for _, val := range r.Values {
			v.checkValue(val, s.ID, 1)
		}
	case ast.StatementLimit:
		if r.Field == "" {
			bad("rule.field is required")
		}
		if !containsOp(ast.LimitOperators, r.Op) {
			v.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
				fmt.Sprintf("LIMIT statement '%s': invalid op '%s'", s.ID, r.Op), r.Location,
				bdlErrors.Suggest(string(r.Op), ast.LimitOperators))
		}
		if r.Value == nil {
			bad("rule.value is required")
		} else {
			v.checkValue(r.Value, s.ID, 1)
		}
	case ast.StatementRoute:
		if r.To == "" {
			bad("rule.to is required")
		}
		if r.SLAHours != nil && *r.SLAHours < 0 {
			bad("rule.sla_hours must not be negative")
		}
	case ast.StatementTag:
		if len(r.Add) == 0 {
			bad("rule.add must not be empty")
		}
	}
}

func (v *StructuralValidator) checkPredicate(p *ast.Predicate, stmtID string, depth int) {
	if depth > v.maxPredicateDepth {
		v.errors.AddError(bdlErrors.ErrorTypeLimit,
			fmt.Sprintf("statement '%s': predicate nesting exceeds maximum depth %d", stmtID, v.maxPredicateDepth), p.Location)
		return
	}
	bad := func(format string, args ...interface{}) {
		v.errors.AddError(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("statement '%s': %s", stmtID, fmt.Sprintf(format, args...)), p.Location)
	}

	switch p.Kind {
	case ast.PredicateAll, ast.PredicateAny:
		if len(p.Children) == 0 {
			bad("%s has no members", p.Kind)
		}
		for _, c := range p.Children {
			v.checkPredicate(c, stmtID, depth+1)
		}
	case ast.PredicateNot:
		if p.Operand == nil {
			bad("not has no operand")
			return
		}
		v.checkPredicate(p.Operand, stmtID, depth+1)
	case ast.PredicateComparison:
		if p.Field == "" {
			bad("comparison '%s' has no field", p.Op)
		}
		if !p.Op.IsComparison() {
			bad("'%s' is not a comparison operator", p.Op)
		}
		switch {
		case p.Op == ast.OpExists:
			if p.Value != nil {
				bad("exists takes no value")
			}
		case p.Value == nil:
			bad("comparison '%s' requires a value", p.Op)
		case p.Op == ast.OpIn && !p.Value.IsArrayLiteral():
			bad("in requires a literal array on the right side")
		default:
			v.checkValue(p.Value, stmtID, 1)
		}
		if p.Duration != nil {
			bad("duration is only valid for within/elapsed")
		}
	case ast.PredicateTemporal:
		if p.Field == "" {
			bad("temporal comparison '%s' has no field", p.Op)
		}
		switch p.Op {
		case ast.OpBefore, ast.OpAfter:
			if p.Value == nil {
				bad("%s requires a value", p.Op)
			} else {
				v.checkValue(p.Value, stmtID, 1)
			}
			if p.Duration != nil {
				bad("%s takes no duration", p.Op)
			}
		case ast.OpWithin, ast.OpElapsed:
			if p.Duration == nil {
				bad("%s requires a duration", p.Op)
			}
			if p.Value != nil {
				bad("%s compares against now and takes no value", p.Op)
			}
		default:
			bad("'%s' is not a temporal operator", p.Op)
		}
	default:
		bad("unknown predicate kind '%s'", p.Kind)
	}
}

func (v *StructuralValidator) checkValue(val *ast.Value, stmtID string, depth int) {
	if depth > v.maxValueDepth {
		v.errors.AddError(bdlErrors.ErrorTypeLimit,
			fmt.Sprintf("statement '%s': value nesting exceeds maximum depth %d", stmtID, v.maxValueDepth), val.Location)
		return
	}
	bad := func(format string, args ...interface{}) {
		v.errors.AddError(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("statement '%s': %s", stmtID, fmt.Sprintf(format, args...)), val.Location)
	}

	switch val.Kind {
	case ast.ValueLiteral, ast.ValueNow:
	case ast.ValueField:
		if val.Field == "" {
			bad("field reference is empty")
		}
	case ast.ValueParam:
		if val.Param == "" {
			bad("param reference is empty")
		}
	case ast.ValueLookup:
		if val.Table == "" {
			bad("lookup has no table")
		}
		if len(val.Keys) == 0 {
			bad("lookup '%s' has no keys", val.Table)
		}
	case ast.ValueArithmetic:
		switch val.Arith {
		case ast.ArithAdd, ast.ArithSub, ast.ArithMul, ast.ArithDiv:
		default:
			bad("unknown arithmetic operator '%s'", val.Arith)
		}
		if len(val.Operands) < 2 {
			bad("%s needs at least two operands", val.Arith)
		}
		for _, o := range val.Operands {
			v.checkValue(o, stmtID, depth+1)
		}
	default:
		bad("unknown value kind '%s'", val.Kind)
	}
}

func containsOp(list []string, op ast.Operator) bool {
	for _, s := range list {
		if s == string(op) {
			return true
		}
	}
	return false
}
