package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/decision"
	"mercator-hq/bdl/pkg/policy/engine"
)

func resetEvalFlags() {
	evalFlags.policy = ""
	evalFlags.version = ""
	evalFlags.caseFile = ""
	evalFlags.paramsFile = ""
	evalFlags.params = nil
	evalFlags.profileTypes = nil
	evalFlags.missingData = ""
	evalFlags.now = ""
	evalFlags.trace = false
	evalFlags.format = "text"
}

func writeCase(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const casualFriday = `
request:
  item: JEANS
context:
  day_of_week: FRIDAY
  is_client_meeting: false
`

func TestBuildEvalRequest(t *testing.T) {
	resetEvalFlags()
	t.Cleanup(resetEvalFlags)

	evalFlags.caseFile = "-"
	evalFlags.policy = "expenses"
	evalFlags.params = []string{"auto_approve_limit=40", "region=EU", "strict=true"}
	evalFlags.profileTypes = []string{"allow", " limit"}
	evalFlags.now = "2026-03-01"
	evalFlags.trace = true

	req, err := buildEvalRequest(strings.NewReader(`{"expense": {"amount": 12.5}}`))
	if err != nil {
		t.Fatalf("buildEvalRequest: %v", err)
	}

	wantParams := map[string]interface{}{"auto_approve_limit": 40, "region": "EU", "strict": true}
	if diff := cmp.Diff(wantParams, req.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	wantCase := map[string]interface{}{"expense": map[string]interface{}{"amount": 12.5}}
	if diff := cmp.Diff(wantCase, req.Case); diff != "" {
		t.Errorf("case mismatch (-want +got):\n%s", diff)
	}
	if req.Profile == nil {
		t.Fatal("expected a profile")
	}
	if diff := cmp.Diff([]ast.StatementType{ast.StatementAllow, ast.StatementLimit}, req.Profile.EvaluateTypes); diff != "" {
		t.Errorf("profile types mismatch (-want +got):\n%s", diff)
	}
	if req.Now == nil || !req.Now.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("now = %v", req.Now)
	}
	if !req.IncludeTrace || req.PolicyID != "expenses" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestBuildEvalRequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
		field string
	}{
		{"missing case file", func() { evalFlags.caseFile = "does-not-exist.yaml" }, "case"},
		{"bad param", func() { evalFlags.params = []string{"noequals"} }, "param"},
		{"bad profile type", func() { evalFlags.profileTypes = []string{"PERMIT"} }, "profile-types"},
		{"bad now", func() { evalFlags.now = "yesterday" }, "now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEvalFlags()
			t.Cleanup(resetEvalFlags)
			evalFlags.caseFile = "-"
			tt.setup()

			_, err := buildEvalRequest(strings.NewReader("{}"))
			var ce *cli.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestMergeProfile(t *testing.T) {
	base := engine.DefaultProfile()
	got := mergeProfile(base, &engine.Profile{Name: "cli", MissingDataBehavior: engine.MissingAsk})
	if diff := cmp.Diff(base.EvaluateTypes, got.EvaluateTypes); diff != "" {
		t.Errorf("types not inherited (-want +got):\n%s", diff)
	}
	if got.MissingDataBehavior != engine.MissingAsk {
		t.Errorf("behavior = %q", got.MissingDataBehavior)
	}
}

func TestEvalText(t *testing.T) {
	out := useConfig(t, nil)
	resetEvalFlags()
	t.Cleanup(resetEvalFlags)
	evalFlags.policy = "dress-code"
	evalFlags.caseFile = writeCase(t, casualFriday)
	evalFlags.trace = true

	if err := runEval(withContext(evalCmd), nil); err != nil {
		t.Fatalf("runEval: %v", err)
	}
	s := out.String()
	for _, want := range []string{"dress-code@1.0.0", "compliant", "CASUAL_FRIDAY", "CASUAL_FRIDAY *", "STATEMENT"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestEvalJSON(t *testing.T) {
	out := useConfig(t, nil)
	resetEvalFlags()
	t.Cleanup(resetEvalFlags)
	evalFlags.policy = "dress-code"
	evalFlags.caseFile = writeCase(t, "context: {day_of_week: MONDAY}\n")
	evalFlags.format = "json"

	if err := runEval(withContext(evalCmd), nil); err != nil {
		t.Fatalf("runEval: %v", err)
	}
	var resp decision.EvaluateResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if resp.Verdict != ast.VerdictNeedsInfo {
		t.Errorf("verdict = %q, want needs_info", resp.Verdict)
	}
	if diff := cmp.Diff([]string{"request.item"}, resp.RequiredFields); diff != "" {
		t.Errorf("required fields mismatch (-want +got):\n%s", diff)
	}
	if resp.TraceID == "" || resp.Trace != nil {
		t.Errorf("unexpected trace fields: id=%q trace=%v", resp.TraceID, resp.Trace)
	}
}

func TestEvalUnknownPolicy(t *testing.T) {
	useConfig(t, nil)
	resetEvalFlags()
	t.Cleanup(resetEvalFlags)
	evalFlags.policy = "missing"
	evalFlags.caseFile = writeCase(t, "{}")

	err := runEval(withContext(evalCmd), nil)
	var ce *cli.CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cli.ExitCode(err) != cli.ExitGeneral {
		t.Errorf("exit code = %d", cli.ExitCode(err))
	}
}
