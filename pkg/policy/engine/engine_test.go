package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"mercator-hq/bdl/pkg/bdl"
	"mercator-hq/bdl/pkg/bdl/ast"
)

var fixedNow = time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)

func compile(t *testing.T, src string) *Program {
	t.Helper()
	doc, err := bdl.ParseAndValidateBytes([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := Compile(doc)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func newTestEngine(t *testing.T, config *Config) *Engine {
	t.Helper()
	eng, err := NewEngine(config, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng.WithClock(func() time.Time { return fixedNow })
}

func evaluate(t *testing.T, eng *Engine, prog *Program, req *Request) *Decision {
	t.Helper()
	d, err := eng.Evaluate(context.Background(), prog, req)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return d
}

func statementTrace(d *Decision, id string) *StatementTrace {
	for i := range d.Trace.Statements {
		if d.Trace.Statements[i].ID == id {
			return &d.Trace.Statements[i]
		}
	}
	return nil
}

const casualFriday = `
  - id: CASUAL_FRIDAY
    type: ALLOW
    priority: 90
    applies_when:
      all:
        - {field: context.day_of_week, op: eq, value: FRIDAY}
        - {field: context.is_client_meeting, op: eq, value: false}
    rule:
      field: request.item
      values: [JEANS, SNEAKERS]
    outcomes:
      apply: {verdict: compliant, reason_code: CASUAL_FRIDAY, override: true}
`

const jeansForbidden = `
  - id: JEANS_FORBIDDEN
    type: FORBID
    priority: 50
    rule:
      field: request.item
      values: [JEANS]
    outcomes:
      violation: {verdict: non_compliant, reason_code: JEANS_NOT_ALLOWED}
`

const dressHeader = `
policy_id: dress
version: 1.0.0
defaults:
  on_missing: needs_info
statements:
`

func TestDeclarationOrderDoesNotMatter(t *testing.T) {
	eng := newTestEngine(t, nil)
	forward := compile(t, dressHeader+jeansForbidden+casualFriday)
	reverse := compile(t, dressHeader+casualFriday+jeansForbidden)

	tests := []struct {
		name    string
		c       map[string]interface{}
		verdict ast.Verdict
		codes   []string
	}{
		{
			name: "friday jeans",
			c: map[string]interface{}{
				"request": map[string]interface{}{"item": "JEANS"},
				"context": map[string]interface{}{"day_of_week": "FRIDAY", "is_client_meeting": false},
			},
			verdict: ast.VerdictCompliant,
			codes:   []string{"CASUAL_FRIDAY"},
		},
		{
			name: "monday jeans",
			c: map[string]interface{}{
				"request": map[string]interface{}{"item": "JEANS"},
				"context": map[string]interface{}{"day_of_week": "MONDAY"},
			},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"JEANS_NOT_ALLOWED"},
		},
		{
			name: "friday with client meeting",
			c: map[string]interface{}{
				"request": map[string]interface{}{"item": "JEANS"},
				"context": map[string]interface{}{"day_of_week": "FRIDAY", "is_client_meeting": true},
			},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"JEANS_NOT_ALLOWED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, prog := range map[string]*Program{"forward": forward, "reverse": reverse} {
				d := evaluate(t, eng, prog, &Request{Case: tt.c, TraceID: "t"})
				if d.Verdict != tt.verdict {
					t.Errorf("%s: verdict = %s, want %s", name, d.Verdict, tt.verdict)
				}
				if diff := cmp.Diff(tt.codes, d.ReasonCodes); diff != "" {
					t.Errorf("%s: reason codes (-want +got):\n%s", name, diff)
				}
			}
		})
	}
}

func TestOutcomeSelection(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		c        map[string]interface{}
		verdict  ast.Verdict
		codes    []string
		required []string
	}{
		{
			name: "statement outcome beats document default",
			doc: `
policy_id: p
version: 1.0.0
defaults:
  on_violation: {verdict: needs_review, reason_code: DEFAULT}
statements:
  - id: L
    type: LIMIT
    rule: {field: amount, op: lte, value: 10}
    outcomes: {violation: {verdict: non_compliant, reason_code: OWN}}
`,
			c:       map[string]interface{}{"amount": 20},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"OWN"},
		},
		{
			name: "document default fills an absent slot",
			doc: `
policy_id: p
version: 1.0.0
defaults:
  on_violation: {verdict: needs_review, reason_code: DEFAULT}
statements:
  - id: L
    type: LIMIT
    rule: {field: amount, op: lte, value: 10}
    outcomes: {apply: compliant}
`,
			c:       map[string]interface{}{"amount": 20},
			verdict: ast.VerdictNeedsReview,
			codes:   []string{"DEFAULT"},
		},
		{
			name: "builtin missing fallback",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: L
    type: LIMIT
    rule: {field: amount, op: lte, value: 10}
    outcomes: {apply: compliant}
`,
			c:        map[string]interface{}{},
			verdict:  ast.VerdictNeedsInfo,
			codes:    []string{},
			required: []string{"amount"},
		},
		{
			name: "builtin error fallback",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: L
    type: LIMIT
    rule: {field: amount, op: lte, value: 10}
    outcomes: {apply: compliant}
`,
			c:       map[string]interface{}{"amount": "lots"},
			verdict: ast.VerdictNeedsReview,
			codes:   []string{},
		},
		{
			name: "implicit no_change does not mask lower statements",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: R
    type: REQUIRE
    priority: 90
    rule: {require_fields: [amount]}
    outcomes: {missing: needs_info}
  - id: L
    type: LIMIT
    priority: 10
    rule: {field: amount, op: lte, value: 10}
    outcomes: {violation: {verdict: non_compliant, reason_code: TOO_MUCH}}
`,
			c:       map[string]interface{}{"amount": 20},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"TOO_MUCH"},
		},
		{
			name: "nothing fires",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: A
    type: ALLOW
    rule: {field: item, values: [X]}
    outcomes: {apply: compliant}
`,
			c:       map[string]interface{}{"item": "Y"},
			verdict: ast.VerdictNoChange,
			codes:   []string{},
		},
		{
			name: "higher priority wins without override",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: LOW
    type: ALLOW
    priority: 10
    rule: {field: item, values: [X]}
    outcomes: {apply: {verdict: non_compliant, reason_code: LOW}}
  - id: HIGH
    type: ALLOW
    priority: 20
    rule: {field: item, values: [X]}
    outcomes: {apply: {verdict: compliant, reason_code: HIGH}}
`,
			c:       map[string]interface{}{"item": "X"},
			verdict: ast.VerdictCompliant,
			codes:   []string{"HIGH"},
		},
		{
			name: "equal priority resolves in document order",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: FIRST
    type: ALLOW
    rule: {field: item, values: [X]}
    outcomes: {apply: {verdict: non_compliant, reason_code: FIRST}}
  - id: SECOND
    type: ALLOW
    rule: {field: item, values: [X]}
    outcomes: {apply: {verdict: compliant, reason_code: SECOND}}
`,
			c:       map[string]interface{}{"item": "X"},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"FIRST"},
		},
		{
			name: "later override replaces the winner",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: HIGH
    type: ALLOW
    priority: 20
    rule: {field: item, values: [X]}
    outcomes: {apply: {verdict: compliant, reason_code: HIGH}}
  - id: LOW
    type: ALLOW
    priority: 10
    rule: {field: item, values: [X]}
    outcomes: {apply: {verdict: non_compliant, reason_code: LOW, override: true}}
`,
			c:       map[string]interface{}{"item": "X"},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"LOW"},
		},
		{
			name: "tag without outcomes never competes",
			doc: `
policy_id: p
version: 1.0.0
statements:
  - id: T
    type: TAG
    priority: 100
    rule: {add: [flagged]}
  - id: A
    type: ALLOW
    rule: {field: item, values: [X]}
    outcomes: {apply: compliant}
`,
			c:       map[string]interface{}{"item": "X"},
			verdict: ast.VerdictCompliant,
			codes:   []string{},
		},
		{
			name:     "tag with missing applies_when takes on_missing default",
			doc:      tagDefaultsDoc,
			c:        map[string]interface{}{"trip": map[string]interface{}{}},
			verdict:  ast.VerdictNeedsInfo,
			codes:    []string{"TRIP_INCOMPLETE"},
			required: []string{"trip.start"},
		},
		{
			name:    "tag with errored applies_when takes on_error default",
			doc:     tagDefaultsDoc,
			c:       map[string]interface{}{"trip": map[string]interface{}{"start": nil}},
			verdict: ast.VerdictNeedsReview,
			codes:   []string{"TRIP_UNREADABLE"},
		},
	}

	eng := newTestEngine(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := evaluate(t, eng, compile(t, tt.doc), &Request{Case: tt.c})
			if d.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", d.Verdict, tt.verdict)
			}
			if diff := cmp.Diff(tt.codes, d.ReasonCodes); diff != "" {
				t.Errorf("reason codes (-want +got):\n%s", diff)
			}
			if tt.required == nil {
				tt.required = []string{}
			}
			if diff := cmp.Diff(tt.required, d.RequiredFields); diff != "" {
				t.Errorf("required fields (-want +got):\n%s", diff)
			}
		})
	}
}

const tagDefaultsDoc = `
policy_id: p
version: 1.0.0
defaults:
  on_missing: {verdict: needs_info, reason_code: TRIP_INCOMPLETE}
  on_error: {verdict: needs_review, reason_code: TRIP_UNREADABLE}
statements:
  - id: EARLY_TRIP
    type: TAG
    applies_when: {field: trip.start, op: before, value: 2024-01-01}
    rule: {add: [early]}
`

const haltDoc = `
policy_id: p
version: 1.0.0
statements:
  - id: STOP
    type: ALLOW
    priority: 90
    rule: {field: grade, values: [VP]}
    outcomes: {apply: {verdict: compliant, reason_code: EXEC, halt: true}}
  - id: AFTER
    type: LIMIT
    priority: 50
    rule: {field: amount, op: lte, value: 10}
    outcomes: {violation: non_compliant}
`

func TestHaltSkipsRemainingStatements(t *testing.T) {
	eng := newTestEngine(t, nil)
	d := evaluate(t, eng, compile(t, haltDoc), &Request{Case: map[string]interface{}{"grade": "VP", "amount": 99}})

	if d.Verdict != ast.VerdictCompliant {
		t.Fatalf("verdict = %s", d.Verdict)
	}
	st := statementTrace(d, "AFTER")
	if st.Status != StatusSkipped || st.SkipReason != SkipHalted {
		t.Errorf("AFTER = %s/%s, want skipped/halted", st.Status, st.SkipReason)
	}
	if !d.Trace.Halted {
		t.Error("trace does not record the halt")
	}
}

func TestHaltWaitsForPendingOverride(t *testing.T) {
	doc := haltDoc + `
  - id: LAST_WORD
    type: LIMIT
    priority: 10
    rule: {field: amount, op: lte, value: 50}
    outcomes: {violation: {verdict: needs_review, reason_code: OVERRIDDEN, override: true}}
`
	eng := newTestEngine(t, nil)
	d := evaluate(t, eng, compile(t, doc), &Request{Case: map[string]interface{}{"grade": "VP", "amount": 99}})

	if d.Verdict != ast.VerdictNeedsReview || d.Trace.Winner != "LAST_WORD" {
		t.Fatalf("verdict = %s winner = %s, want the later override", d.Verdict, d.Trace.Winner)
	}
	if st := statementTrace(d, "AFTER"); st.Status == StatusSkipped {
		t.Error("statements before a pending override must still run")
	}
}

func TestDefineFeedsLaterStatements(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
tables:
  - id: caps
    key_columns: [tier]
    value_column: cap
    rows:
      - {tier: A, cap: 100}
      - {tier: A, cap: 1}
      - {tier: B, cap: 50}
statements:
  - id: LIMIT_CAP
    type: LIMIT
    priority: 10
    rule: {field: amount, op: lte, value: {field: derived.cap}}
    outcomes: {apply: compliant, violation: non_compliant}
  - id: CAP
    type: DEFINE
    rule:
      set:
        - target: derived.cap
          value: {lookup: {table: caps, keys: [tier]}}
        - target: derived.half
          value: {div: [{field: derived.cap}, 2]}
`
	eng := newTestEngine(t, nil)
	prog := compile(t, doc)

	d := evaluate(t, eng, prog, &Request{Case: map[string]interface{}{"tier": "A", "amount": 60}})
	if d.Verdict != ast.VerdictCompliant {
		t.Errorf("first matching row must win: verdict = %s", d.Verdict)
	}
	st := statementTrace(d, "CAP")
	want := map[string]interface{}{"derived.cap": float64(100), "derived.half": float64(50)}
	if diff := cmp.Diff(want, st.Defined); diff != "" {
		t.Errorf("defined values (-want +got):\n%s", diff)
	}
	if d.Trace.Statements[0].ID != "CAP" {
		t.Errorf("DEFINE must run first, got %s", d.Trace.Statements[0].ID)
	}
}

func TestDefineFailureCompetes(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
defaults:
  on_error: {verdict: needs_review, reason_code: CAP_LOOKUP_FAILED}
tables:
  - {id: caps, key_columns: [tier], value_column: cap, rows: [{tier: A, cap: 100}]}
statements:
  - id: CAP
    type: DEFINE
    priority: 50
    rule:
      set:
        - target: derived.cap
          value: {lookup: {table: caps, keys: [tier]}}
  - id: UNDER_CAP
    type: LIMIT
    priority: 10
    applies_when: {field: derived.cap, op: exists}
    rule: {field: amount, op: lte, value: {field: derived.cap}}
    outcomes: {apply: compliant}
  - id: ALWAYS
    type: ALLOW
    priority: 5
    rule: {field: amount, values: [60]}
    outcomes: {apply: {verdict: compliant, reason_code: LOW}}
`
	prog := compile(t, doc)

	tests := []struct {
		name     string
		config   *Config
		c        map[string]interface{}
		verdict  ast.Verdict
		codes    []string
		status   Status
		required []string
	}{
		{
			name:    "no matching row is an error",
			config:  DefaultConfig(),
			c:       map[string]interface{}{"tier": "Z", "amount": 60},
			verdict: ast.VerdictNeedsReview,
			codes:   []string{"CAP_LOOKUP_FAILED"},
			status:  StatusErrored,
		},
		{
			name:     "no matching row as missing data",
			config:   DefaultConfig().WithLookupNoMatch(NoMatchMissing),
			c:        map[string]interface{}{"tier": "Z", "amount": 60},
			verdict:  ast.VerdictNeedsInfo,
			codes:    []string{},
			status:   StatusMissing,
			required: []string{"lookup:caps"},
		},
		{
			name:     "absent key",
			config:   DefaultConfig(),
			c:        map[string]interface{}{"amount": 60},
			verdict:  ast.VerdictNeedsInfo,
			codes:    []string{},
			status:   StatusMissing,
			required: []string{"tier"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := evaluate(t, newTestEngine(t, tt.config), prog, &Request{Case: tt.c})
			if d.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", d.Verdict, tt.verdict)
			}
			if diff := cmp.Diff(tt.codes, d.ReasonCodes); diff != "" {
				t.Errorf("reason codes (-want +got):\n%s", diff)
			}
			if st := statementTrace(d, "CAP"); st.Status != tt.status {
				t.Errorf("CAP status = %s, want %s", st.Status, tt.status)
			}
			if st := statementTrace(d, "UNDER_CAP"); st.SkipReason != SkipNotApplicable {
				t.Errorf("target must stay unset, UNDER_CAP = %s/%s", st.Status, st.SkipReason)
			}
			if tt.required == nil {
				tt.required = []string{}
			}
			if diff := cmp.Diff(tt.required, d.RequiredFields); diff != "" {
				t.Errorf("required fields (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequireEvidence(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
statements:
  - id: R
    type: REQUIRE
    rule:
      require_fields: [claim.id]
      require_evidence: [RECEIPT, APPROVAL]
    outcomes:
      apply: compliant
      missing: {verdict: needs_info, reason_code: MORE_PLEASE}
`
	prog := compile(t, doc)
	eng := newTestEngine(t, nil)

	tests := []struct {
		name     string
		c        map[string]interface{}
		verdict  ast.Verdict
		required []string
	}{
		{
			name:     "no evidence key",
			c:        map[string]interface{}{"claim": map[string]interface{}{"id": "C1"}},
			verdict:  ast.VerdictNeedsInfo,
			required: []string{"evidence:RECEIPT", "evidence:APPROVAL"},
		},
		{
			name: "evidence by string and by object",
			c: map[string]interface{}{
				"claim":    map[string]interface{}{"id": "C1"},
				"evidence": []interface{}{"RECEIPT", map[string]interface{}{"type": "APPROVAL"}},
			},
			verdict:  ast.VerdictCompliant,
			required: []string{},
		},
		{
			name: "null field counts as missing",
			c: map[string]interface{}{
				"claim":    map[string]interface{}{"id": nil},
				"evidence": []interface{}{"RECEIPT"},
			},
			verdict:  ast.VerdictNeedsInfo,
			required: []string{"claim.id", "evidence:APPROVAL"},
		},
		{
			name: "evidence that is not a list",
			c: map[string]interface{}{
				"claim":    map[string]interface{}{"id": "C1"},
				"evidence": "RECEIPT",
			},
			verdict:  ast.VerdictNeedsReview,
			required: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := evaluate(t, eng, prog, &Request{Case: tt.c})
			if d.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", d.Verdict, tt.verdict)
			}
			if diff := cmp.Diff(tt.required, d.RequiredFields); diff != "" {
				t.Errorf("required fields (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParamBinding(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
defaults:
  on_error: {verdict: non_compliant, reason_code: BAD_PARAMS}
params:
  - {name: limit, type: number, default: 10}
  - {name: region, type: string, required: true}
statements:
  - id: L
    type: LIMIT
    rule: {field: amount, op: lte, value: {param: limit}}
    outcomes: {apply: compliant, violation: non_compliant}
`
	prog := compile(t, doc)

	tests := []struct {
		name    string
		strict  bool
		params  map[string]interface{}
		verdict ast.Verdict
		codes   []string
	}{
		{
			name:    "default applies",
			params:  map[string]interface{}{"region": "EU"},
			verdict: ast.VerdictCompliant,
			codes:   []string{},
		},
		{
			name:    "supplied value wins",
			params:  map[string]interface{}{"region": "EU", "limit": 1},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{},
		},
		{
			name:    "required param absent",
			params:  nil,
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"PARAM_REQUIRED:region", "BAD_PARAMS"},
		},
		{
			name:    "type mismatch",
			params:  map[string]interface{}{"region": "EU", "limit": "ten"},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"PARAM_TYPE_MISMATCH:limit", "BAD_PARAMS"},
		},
		{
			name:    "unknown param ignored",
			params:  map[string]interface{}{"region": "EU", "extra": 1},
			verdict: ast.VerdictCompliant,
			codes:   []string{},
		},
		{
			name:    "unknown param in strict mode",
			strict:  true,
			params:  map[string]interface{}{"region": "EU", "zeta": 1, "alpha": 2},
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"PARAM_UNKNOWN:alpha", "PARAM_UNKNOWN:zeta", "BAD_PARAMS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t, DefaultConfig().WithStrictParams(tt.strict))
			d := evaluate(t, eng, prog, &Request{Case: map[string]interface{}{"amount": 5}, Params: tt.params})
			if d.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", d.Verdict, tt.verdict)
			}
			if diff := cmp.Diff(tt.codes, d.ReasonCodes); diff != "" {
				t.Errorf("reason codes (-want +got):\n%s", diff)
			}
			if len(d.Trace.ParamErrors) > 0 {
				for _, st := range d.Trace.Statements {
					if st.SkipReason != SkipParamError {
						t.Errorf("%s evaluated despite param errors", st.ID)
					}
				}
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
statements:
  - id: NEEDS_AMOUNT
    type: LIMIT
    priority: 50
    applies_when: {field: amount, op: gt, value: 0}
    rule: {field: amount, op: lte, value: 10}
    outcomes: {missing: {verdict: non_compliant, reason_code: NO_AMOUNT}}
  - id: ROUTE_ALL
    type: ROUTE
    priority: 10
    rule: {to: queue}
    outcomes: {apply: {verdict: needs_review, reason_code: ROUTED}}
`
	prog := compile(t, doc)
	eng := newTestEngine(t, nil)
	empty := map[string]interface{}{}

	tests := []struct {
		name    string
		profile Profile
		verdict ast.Verdict
		codes   []string
		status  Status
	}{
		{
			name:    "enforce",
			profile: DefaultProfile(),
			verdict: ast.VerdictNonCompliant,
			codes:   []string{"NO_AMOUNT"},
			status:  StatusMissing,
		},
		{
			name:    "ask",
			profile: Profile{EvaluateTypes: DefaultProfile().EvaluateTypes, MissingDataBehavior: MissingAsk},
			verdict: ast.VerdictNeedsInfo,
			codes:   []string{"NO_AMOUNT"},
			status:  StatusMissing,
		},
		{
			name:    "ignore",
			profile: Profile{EvaluateTypes: DefaultProfile().EvaluateTypes, MissingDataBehavior: MissingIgnore},
			verdict: ast.VerdictNeedsReview,
			codes:   []string{"ROUTED"},
			status:  StatusSkipped,
		},
		{
			name:    "routes only",
			profile: Profile{EvaluateTypes: []ast.StatementType{ast.StatementRoute}, MissingDataBehavior: MissingEnforce},
			verdict: ast.VerdictNeedsReview,
			codes:   []string{"ROUTED"},
			status:  StatusSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := tt.profile
			d := evaluate(t, eng, prog, &Request{Case: empty, Profile: &profile})
			if d.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", d.Verdict, tt.verdict)
			}
			if diff := cmp.Diff(tt.codes, d.ReasonCodes); diff != "" {
				t.Errorf("reason codes (-want +got):\n%s", diff)
			}
			if st := statementTrace(d, "NEEDS_AMOUNT"); st.Status != tt.status {
				t.Errorf("NEEDS_AMOUNT status = %s, want %s", st.Status, tt.status)
			}
			if len(d.Routes) != 1 || d.Routes[0].To != "queue" {
				t.Errorf("routes = %+v", d.Routes)
			}
		})
	}
}

func TestTagsAndRoutes(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
statements:
  - id: BIG
    type: TAG
    priority: 20
    applies_when: {field: amount, op: gt, value: 100}
    rule: {add: [high-value, review]}
  - id: REVIEW
    type: TAG
    priority: 10
    rule: {add: [review]}
  - id: AUDIT
    type: ROUTE
    rule: {to: audit, sla_hours: 48}
    outcomes: {apply: needs_review}
`
	prog := compile(t, doc)
	eng := newTestEngine(t, DefaultConfig().WithTagsInReasonCodes(true))
	d := evaluate(t, eng, prog, &Request{Case: map[string]interface{}{"amount": 500}})

	if diff := cmp.Diff([]string{"high-value", "review"}, d.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"high-value", "review"}, d.ReasonCodes); diff != "" {
		t.Errorf("reason codes (-want +got):\n%s", diff)
	}
	sla := 48.0
	if diff := cmp.Diff([]Route{{StatementID: "AUDIT", To: "audit", SLAHours: &sla}}, d.Routes); diff != "" {
		t.Errorf("routes (-want +got):\n%s", diff)
	}
}

func TestTemporalOperators(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
statements:
  - id: RECENT
    type: TAG
    applies_when: {field: submitted, op: within, duration: 30 days}
    rule: {add: [recent]}
  - id: STALE
    type: TAG
    applies_when: {field: submitted, op: elapsed, duration: {amount: 1, unit: months}}
    rule: {add: [stale]}
  - id: BEFORE_CUTOFF
    type: TAG
    applies_when: {field: submitted, op: before, value: 2024-01-01}
    rule: {add: [last-year]}
  - id: AFTER_NOW
    type: TAG
    applies_when: {field: submitted, op: after, value: {now: true}}
    rule: {add: [future]}
`
	prog := compile(t, doc)
	eng := newTestEngine(t, nil)

	tests := []struct {
		submitted interface{}
		tags      []string
	}{
		{"2024-06-01", []string{"recent"}},
		{"2024-05-01T00:00:00Z", []string{"stale"}},
		{"2023-12-31", []string{"stale", "last-year"}},
		{"2024-07-01", []string{"recent", "future"}},
		{fixedNow.AddDate(0, 0, -3), []string{"recent"}},
	}
	for _, tt := range tests {
		d := evaluate(t, eng, prog, &Request{Case: map[string]interface{}{"submitted": tt.submitted}})
		if diff := cmp.Diff(tt.tags, d.Tags, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("submitted %v: tags (-want +got):\n%s", tt.submitted, diff)
		}
	}

	d := evaluate(t, eng, prog, &Request{Case: map[string]interface{}{}})
	if diff := cmp.Diff([]string{"submitted"}, d.RequiredFields); diff != "" {
		t.Errorf("absent instant must be missing data (-want +got):\n%s", diff)
	}

	d = evaluate(t, eng, prog, &Request{Case: map[string]interface{}{"submitted": nil}})
	if st := statementTrace(d, "RECENT"); st.Status != StatusErrored {
		t.Errorf("null instant: status = %s, want %s", st.Status, StatusErrored)
	}
	if len(d.RequiredFields) != 0 {
		t.Errorf("null instant reported as missing: %v", d.RequiredFields)
	}

	d = evaluate(t, eng, prog, &Request{Case: map[string]interface{}{"submitted": "yesterday"}})
	if st := statementTrace(d, "RECENT"); st.Status != StatusErrored {
		t.Errorf("unparseable instant: status = %s", st.Status)
	}
}

func TestRequestNowOverridesClock(t *testing.T) {
	doc := `
policy_id: p
version: 1.0.0
statements:
  - id: RECENT
    type: ALLOW
    applies_when: {field: submitted, op: within, duration: 7 days}
    rule: {field: kind, values: [claim]}
    outcomes: {apply: compliant}
`
	prog := compile(t, doc)
	eng := newTestEngine(t, nil)
	c := map[string]interface{}{"submitted": "2020-01-05", "kind": "claim"}

	if d := evaluate(t, eng, prog, &Request{Case: c}); d.Verdict != ast.VerdictNoChange {
		t.Errorf("with engine clock: %s", d.Verdict)
	}
	now := time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC)
	d := evaluate(t, eng, prog, &Request{Case: c, Now: &now})
	if d.Verdict != ast.VerdictCompliant {
		t.Errorf("with request now: %s", d.Verdict)
	}
	if !d.Trace.Now.Equal(now) {
		t.Errorf("trace now = %v", d.Trace.Now)
	}
}

func TestTraceIsReproducible(t *testing.T) {
	prog := compile(t, dressHeader+jeansForbidden+casualFriday)
	eng := newTestEngine(t, nil)
	req := &Request{
		Case: map[string]interface{}{
			"request": map[string]interface{}{"item": "JEANS"},
			"context": map[string]interface{}{"day_of_week": "FRIDAY", "is_client_meeting": false},
		},
		TraceID: "trace-1",
	}

	first := evaluate(t, eng, prog, req)
	second := evaluate(t, eng, prog, req)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay differs (-first +second):\n%s", diff)
	}
	if first.TraceID != "trace-1" || first.Trace.TraceID != "trace-1" {
		t.Errorf("trace id not echoed: %s", first.TraceID)
	}

	generated := evaluate(t, eng, prog, &Request{Case: req.Case})
	if generated.TraceID == "" {
		t.Error("expected a generated trace id")
	}
}

func TestEvaluateErrors(t *testing.T) {
	eng := newTestEngine(t, nil)
	prog := compile(t, dressHeader+jeansForbidden)

	if _, err := eng.Evaluate(context.Background(), nil, &Request{}); !errors.Is(err, ErrNilProgram) {
		t.Errorf("nil program: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Evaluate(ctx, prog, &Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: %v", err)
	}

	bad := Profile{EvaluateTypes: []ast.StatementType{"PERMIT"}, MissingDataBehavior: MissingEnforce}
	if _, err := eng.Evaluate(context.Background(), prog, &Request{Profile: &bad}); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("invalid profile: %v", err)
	}
}

func TestCompile(t *testing.T) {
	if _, err := Compile(nil); err == nil {
		t.Error("nil document must not compile")
	}

	child := &ast.Document{
		PolicyID: "child",
		Version:  "1.0.0",
		Extends:  &ast.PolicyRef{PolicyID: "base", Version: "1.0.0"},
		Chain:    []ast.PolicyRef{{PolicyID: "child", Version: "1.0.0"}},
	}
	if _, err := Compile(child); !errors.Is(err, ErrNotComposed) {
		t.Errorf("uncomposed document: %v", err)
	}

	prog := compile(t, dressHeader+jeansForbidden+casualFriday)
	ids := make([]string, 0, 2)
	for _, s := range prog.Statements() {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"CASUAL_FRIDAY", "JEANS_FORBIDDEN"}, ids); diff != "" {
		t.Errorf("evaluation order (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"value depth", func(c *Config) { c.MaxValueDepth = 0 }},
		{"predicate depth", func(c *Config) { c.MaxPredicateDepth = -1 }},
		{"no-match mode", func(c *Config) { c.LookupNoMatch = "explode" }},
		{"evidence field", func(c *Config) { c.EvidenceField = "" }},
		{"profile", func(c *Config) { c.DefaultProfile.MissingDataBehavior = "shrug" }},
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if _, err := NewEngine(c, nil); err == nil {
				t.Error("NewEngine accepted an invalid config")
			}
		})
	}
}

type countingRecorder struct {
	mu          sync.Mutex
	evaluations map[string]int
	statements  int
	paramErrors []string
}

func (r *countingRecorder) RecordEvaluation(policyID, version, verdict string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations[verdict]++
}

func (r *countingRecorder) RecordStatement(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements++
}

func (r *countingRecorder) RecordParamError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paramErrors = append(r.paramErrors, kind)
}

func TestRecorder(t *testing.T) {
	rec := &countingRecorder{evaluations: make(map[string]int)}
	eng := newTestEngine(t, nil).WithRecorder(rec)
	prog := compile(t, dressHeader+jeansForbidden+casualFriday)

	evaluate(t, eng, prog, &Request{Case: map[string]interface{}{
		"request": map[string]interface{}{"item": "JEANS"},
		"context": map[string]interface{}{"day_of_week": "MONDAY"},
	}})
	evaluate(t, eng, prog, &Request{Case: map[string]interface{}{}})

	if rec.evaluations["non_compliant"] != 1 || rec.evaluations["needs_info"] != 1 {
		t.Errorf("evaluations = %v", rec.evaluations)
	}
	if rec.statements != 4 {
		t.Errorf("statements recorded = %d, want 4", rec.statements)
	}
}
