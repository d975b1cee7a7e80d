package schema

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/bdl/pkg/bdl"
	"mercator-hq/bdl/pkg/bdl/ast"
)

const examplesDir = "../../../examples/policies"

const derivedDoc = `
policy_id: s
version: 1.0.0
statements:
  - id: D
    type: DEFINE
    priority: 1
    rule:
      set:
        - target: calc.total
          value: {add: [{field: a.x}, 1]}
  - id: R
    type: REQUIRE
    priority: 5
    rule:
      require_fields: [a.id, calc.total.cents]
    outcomes:
      missing: needs_info
  - id: OK_FLAG
    type: ALLOW
    priority: 3
    rule: {field: a.flag, values: [true]}
    outcomes:
      apply: compliant
  - id: BAD_FLAG
    type: FORBID
    priority: 2
    rule: {field: a.flag, values: [off-limits]}
    outcomes:
      violation: non_compliant
`

func loadExample(t *testing.T, name string) *ast.Document {
	t.Helper()
	doc, err := bdl.ParseAndValidate(filepath.Join(examplesDir, name))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return doc
}

func parse(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc, err := bdl.ParseAndValidateBytes([]byte(src), "inline.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func property(t *testing.T, s map[string]interface{}, path string) map[string]interface{} {
	t.Helper()
	cur := s
	for _, name := range strings.Split(path, ".") {
		props, ok := cur["properties"].(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = props[name].(map[string]interface{})
		if !ok {
			return nil
		}
	}
	return cur
}

func TestGenerateExpenses(t *testing.T) {
	s := Generate(loadExample(t, "expenses.yaml"), Options{})

	want := []Field{
		{Path: "expense.amount", Types: []string{"number"},
			Statements: []string{"MEAL_CAP", "MEAL_ITEMIZATION", "MEAL_OVER_CAP", "SMALL_EXPENSE", "HIGH_VALUE"}},
		{Path: "expense.category", Types: []string{"string"}, Statements: []string{"MEAL_CAP", "MEAL_ITEMIZATION"}},
		{Path: "expense.city_tier", Statements: []string{"MEAL_CAP"}},
		{Path: "expense.receipt_date", Types: []string{"string"}, Statements: []string{"LATE_SUBMISSION"}},
	}
	if diff := cmp.Diff(want, s.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	if p := property(t, s.Case, "derived"); p != nil {
		t.Errorf("derived values must not be part of the case schema: %v", p)
	}
	if p := property(t, s.Case, "expense.amount"); p == nil || p["type"] != "number" {
		t.Errorf("expense.amount = %v", p)
	}
	if p := property(t, s.Case, "evidence"); p == nil || p["type"] != "array" {
		t.Errorf("evidence = %v", p)
	}
	if s.Case["$id"] != "https://bdl.schemas.local/expenses/2.1.0/case.schema.json" {
		t.Errorf("$id = %v", s.Case["$id"])
	}

	threshold := property(t, s.Params, "meal_itemization_threshold")
	if threshold == nil || threshold["type"] != "number" || threshold["default"] == nil {
		t.Errorf("param schema = %v", threshold)
	}
	if _, ok := s.Params["required"]; ok {
		t.Error("params with defaults must not be required")
	}
	if _, ok := s.Params["additionalProperties"]; ok {
		t.Error("params must stay open unless strict")
	}
}

func TestGenerateDerivedAndConflicts(t *testing.T) {
	s := Generate(parse(t, derivedDoc), Options{})

	want := []Field{
		{Path: "a.flag", Statements: []string{"OK_FLAG", "BAD_FLAG"}},
		{Path: "a.id", Required: true, Statements: []string{"R"}},
		{Path: "a.x", Types: []string{"number"}, Statements: []string{"D"}},
	}
	if diff := cmp.Diff(want, s.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if p := property(t, s.Case, "calc"); p != nil {
		t.Errorf("paths under a DEFINE target must be excluded: %v", p)
	}
	if p := property(t, s.Case, "a.flag"); p == nil || p["type"] != nil {
		t.Errorf("conflicting literal types must drop the type constraint: %v", p)
	}
	if p := property(t, s.Case, "evidence"); p != nil {
		t.Error("evidence is only described when a REQUIRE reads it")
	}
}

func TestValidatorCase(t *testing.T) {
	v, err := Compile(Generate(loadExample(t, "expenses.yaml"), Options{}))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		c       map[string]interface{}
		wantErr bool
	}{
		{name: "empty", c: nil},
		{name: "valid", c: map[string]interface{}{
			"expense":  map[string]interface{}{"amount": 42, "category": "MEAL", "city_tier": "A"},
			"evidence": []interface{}{"ITEMIZED_RECEIPT", map[string]interface{}{"id": "X", "type": "receipt"}},
		}},
		{name: "extra fields allowed", c: map[string]interface{}{"other": true}},
		{name: "amount is a string", c: map[string]interface{}{
			"expense": map[string]interface{}{"amount": "42"},
		}, wantErr: true},
		{name: "expense is not an object", c: map[string]interface{}{"expense": 1}, wantErr: true},
		{name: "evidence is not a list", c: map[string]interface{}{"evidence": "ITEMIZED_RECEIPT"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCase(tt.c)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCase() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatorParams(t *testing.T) {
	doc := loadExample(t, "expenses.yaml")

	open, err := Compile(Generate(doc, Options{}))
	if err != nil {
		t.Fatal(err)
	}
	strict, err := Compile(Generate(doc, Options{StrictParams: true}))
	if err != nil {
		t.Fatal(err)
	}

	unknown := map[string]interface{}{"bogus": 1}
	if err := open.ValidateParams(unknown); err != nil {
		t.Errorf("open params rejected unknown name: %v", err)
	}
	if err := strict.ValidateParams(unknown); err == nil {
		t.Error("strict params accepted unknown name")
	}
	if err := open.ValidateParams(map[string]interface{}{"meal_itemization_threshold": "fifty"}); err == nil {
		t.Error("string accepted for a number param")
	}
	if err := strict.ValidateParams(nil); err != nil {
		t.Errorf("nil params: %v", err)
	}
}

func TestRequiredParams(t *testing.T) {
	doc := parse(t, `
policy_id: p
version: 1.0.0
params:
  - {name: region, type: string, required: true}
  - {name: cutoff, type: date, default: 2024-01-01}
statements:
  - id: S
    type: FORBID
    priority: 1
    applies_when: {field: order.region, op: eq, value: {param: region}}
    rule: {field: order.item, values: [X]}
    outcomes:
      violation: non_compliant
`)
	s := Generate(doc, Options{})
	if diff := cmp.Diff([]interface{}{"region"}, s.Params["required"]); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}
	if p := property(t, s.Params, "cutoff"); p == nil || p["format"] != "date" {
		t.Errorf("cutoff = %v", p)
	}

	v, err := Compile(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateParams(map[string]interface{}{}); err == nil {
		t.Error("missing required param accepted")
	}
	if err := v.ValidateParams(map[string]interface{}{"region": "EU"}); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}
}
