package validator

import (
	"strings"
	"testing"

	"mercator-hq/bdl/pkg/bdl/ast"
	bdlErrors "mercator-hq/bdl/pkg/bdl/errors"
	"mercator-hq/bdl/pkg/bdl/parser"
)

func mustParse(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc, err := parser.NewParser().ParseBytes([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func hasMessage(list []*bdlErrors.Error, substr string) bool {
	for _, e := range list {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidateValidDocument(t *testing.T) {
	doc := mustParse(t, `
policy_id: expenses
version: 2.1.0
params:
  - {name: threshold, type: number, default: 50}
  - {name: cutoff, type: date}
tables:
  - id: caps
    key_columns: [tier]
    value_column: cap
    rows: [{tier: A, cap: 120}]
statements:
  - id: CAP
    type: DEFINE
    rule:
      set:
        - target: derived.cap
          value: {lookup: {table: caps, keys: [expense.tier]}}
  - id: ITEMIZE
    type: REQUIRE
    priority: 70
    applies_when: {field: expense.amount, op: gt, value: {param: threshold}}
    rule: {require_evidence: [RECEIPT]}
    outcomes:
      missing: {verdict: needs_review, reason_code: ITEMIZATION_REQUIRED}
`)
	findings := NewValidator().Check(doc)
	if findings.HasErrors() {
		t.Fatalf("unexpected errors:\n%v", findings)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{
			name: "duplicate statement id",
			src: `
policy_id: p
version: 1.0.0
statements:
  - {id: A, type: TAG, rule: {add: [x]}, outcomes: {apply: no_change}}
  - {id: A, type: TAG, rule: {add: [y]}, outcomes: {apply: no_change}}
`,
			message: "duplicate statement id 'A'",
		},
		{
			name: "duplicate param",
			src: `
policy_id: p
version: 1.0.0
params:
  - {name: x, type: number}
  - {name: x, type: string}
statements: []
`,
			message: "duplicate param 'x'",
		},
		{
			name: "required param with default",
			src: `
policy_id: p
version: 1.0.0
params:
  - {name: x, type: number, required: true, default: 3}
statements: []
`,
			message: "is required and must not declare a default",
		},
		{
			name: "default type mismatch",
			src: `
policy_id: p
version: 1.0.0
params:
  - {name: x, type: number, default: lots}
statements: []
`,
			message: "default of param 'x' does not match type number",
		},
		{
			name: "table row missing column",
			src: `
policy_id: p
version: 1.0.0
tables:
  - {id: t, key_columns: [k], value_column: v, rows: [{k: a}]}
statements: []
`,
			message: "row 1 is missing column 'v'",
		},
		{
			name: "table row extra column",
			src: `
policy_id: p
version: 1.0.0
tables:
  - {id: t, key_columns: [k], value_column: v, rows: [{k: a, v: 1, w: 2}]}
statements: []
`,
			message: "undeclared column 'w'",
		},
		{
			name: "in needs array",
			src: `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: TAG
    applies_when: {field: x, op: in, value: JEANS}
    rule: {add: [t]}
    outcomes: {apply: no_change}
`,
			message: "in requires a literal array",
		},
		{
			name: "exists takes no value",
			src: `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: TAG
    applies_when: {field: x, op: exists, value: 1}
    rule: {add: [t]}
    outcomes: {apply: no_change}
`,
			message: "exists takes no value",
		},
		{
			name: "within needs duration",
			src: `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: TAG
    applies_when: {field: d, op: within}
    rule: {add: [t]}
    outcomes: {apply: no_change}
`,
			message: "within requires a duration",
		},
		{
			name: "limit op",
			src: `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: LIMIT
    rule: {field: x, op: in, value: [1]}
    outcomes: {violation: non_compliant}
`,
			message: "invalid op 'in'",
		},
		{
			name: "ordering with non-numeric literal",
			src: `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: TAG
    applies_when: {field: x, op: lt, value: ten}
    rule: {add: [t]}
    outcomes: {apply: no_change}
`,
			message: "'lt' requires a numeric operand",
		},
		{
			name: "undeclared param",
			src: `
policy_id: p
version: 1.0.0
params:
  - {name: threshold, type: number, default: 1}
statements:
  - id: A
    type: TAG
    applies_when: {field: x, op: gt, value: {param: treshold}}
    rule: {add: [t]}
    outcomes: {apply: no_change}
`,
			message: "references undeclared param 'treshold'",
		},
		{
			name: "lookup key arity",
			src: `
policy_id: p
version: 1.0.0
tables:
  - {id: t, key_columns: [a, b], value_column: v, rows: []}
statements:
  - id: D
    type: DEFINE
    rule:
      set:
        - target: derived.x
          value: {lookup: {table: t, keys: [case.a]}}
`,
			message: "passes 1 key(s), table declares 2",
		},
		{
			name: "effective window reversed",
			src: `
policy_id: p
version: 1.0.0
effective: {from: 2025-01-01, to: 2024-01-01}
statements: []
`,
			message: "effective.to is before effective.from",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := NewValidator().Check(mustParse(t, tt.src))
			if !hasMessage(findings.Errors, tt.message) {
				t.Errorf("no error containing %q in:\n%v", tt.message, findings)
			}
			if err := NewValidator().Validate(mustParse(t, tt.src)); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	doc := mustParse(t, `
policy_id: p
version: first-draft
statements:
  - id: A
    type: TAG
    rule: {add: [t]}
`)
	findings := NewValidator().Check(doc)
	if findings.HasErrors() {
		t.Fatalf("unexpected errors:\n%v", findings)
	}
	if !hasMessage(findings.Warnings, "has no outcome slot") {
		t.Errorf("expected missing-outcome warning, got %v", findings.Warnings)
	}
	if !hasMessage(findings.Warnings, "not a semantic version") {
		t.Errorf("expected version warning, got %v", findings.Warnings)
	}
}

func TestCompositeReferencesDeferred(t *testing.T) {
	doc := mustParse(t, `
policy_id: child
version: 1.0.0
extends: {policy_id: base, version: 1.0.0}
statements:
  - id: A
    type: LIMIT
    rule: {field: x, op: lte, value: {param: inherited_cap}}
    outcomes: {violation: non_compliant}
`)
	if err := NewValidator().Validate(doc); err != nil {
		t.Fatalf("references of composite documents are checked after composition: %v", err)
	}
	if err := NewValidator().ValidateReferences(doc); err == nil {
		t.Error("ValidateReferences should report the unresolved param")
	}
}

func TestMaxDepth(t *testing.T) {
	doc := mustParse(t, `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: TAG
    applies_when: {not: {not: {not: {field: x, op: exists}}}}
    rule: {add: [t]}
    outcomes: {apply: no_change}
`)
	findings := NewValidator().WithMaxDepth(2, 64).Check(doc)
	if !findings.HasErrorType(bdlErrors.ErrorTypeLimit) {
		t.Errorf("expected limit error, got:\n%v", findings)
	}
}
