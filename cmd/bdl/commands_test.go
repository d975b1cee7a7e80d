package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/config"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/suite"
)

func resetTestFlags() {
	testFlags.policy = ""
	testFlags.version = ""
	testFlags.run = nil
	testFlags.format = "text"
	testFlags.concurrency = 0
	testFlags.list = false
}

func TestRunTestsPass(t *testing.T) {
	out := useConfig(t, nil)
	resetTestFlags()
	t.Cleanup(resetTestFlags)
	testFlags.policy = "dress-code"
	testFlags.concurrency = 2

	if err := runTests(withContext(testCmd), nil); err != nil {
		t.Fatalf("runTests: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "PASS: 4/4 tests passed across 1 suite") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRunTestsSelected(t *testing.T) {
	out := useConfig(t, nil)
	resetTestFlags()
	t.Cleanup(resetTestFlags)
	testFlags.policy = "dress-code"
	testFlags.run = []string{"casual-friday"}
	testFlags.format = "json"

	if err := runTests(withContext(testCmd), nil); err != nil {
		t.Fatalf("runTests: %v", err)
	}
	var reports []suite.Report
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reports) != 1 || reports[0].Total != 1 || reports[0].Results[0].ID != "casual-friday" {
		t.Errorf("unexpected reports %+v", reports)
	}
}

func TestRunTestsFailure(t *testing.T) {
	dir := writePolicies(t, []string{"dress-code.yaml"}, map[string]string{
		"dress-code.tests.yaml": `policy_id: dress-code
version: 1.0.0
tests:
  - id: wrong-expectation
    case:
      request: {item: JEANS}
      context: {day_of_week: MONDAY}
    expected:
      verdict: compliant
`,
	})
	out := useConfig(t, func(cfg *config.Config) { cfg.Policy.Dir = dir })
	resetTestFlags()
	t.Cleanup(resetTestFlags)

	err := runTests(withContext(testCmd), nil)
	if cli.ExitCode(err) != cli.ExitFailure {
		t.Fatalf("exit code = %d (err %v), want %d", cli.ExitCode(err), err, cli.ExitFailure)
	}
	s := out.String()
	if !strings.Contains(s, "FAIL  wrong-expectation") || !strings.Contains(s, "FAIL: 0/1") {
		t.Errorf("unexpected output:\n%s", s)
	}
}

func TestRunTestsNeedsPolicy(t *testing.T) {
	useConfig(t, nil)
	resetTestFlags()
	t.Cleanup(resetTestFlags)
	testFlags.run = []string{"casual-friday"}

	var ce *cli.ConfigError
	if err := runTests(withContext(testCmd), nil); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestListTests(t *testing.T) {
	out := useConfig(t, nil)
	resetTestFlags()
	t.Cleanup(resetTestFlags)
	testFlags.policy = "dress-code"
	testFlags.list = true

	if err := runTests(withContext(testCmd), nil); err != nil {
		t.Fatalf("runTests --list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 tests, got:\n%s", out.String())
	}
	if !strings.HasPrefix(lines[1], "casual-friday") {
		t.Errorf("first test = %q", lines[1])
	}
}

func TestLint(t *testing.T) {
	broken := writePolicies(t, nil, map[string]string{
		"broken.yaml": "policy_id: broken\nversion: 1.0.0\nstatements:\n  - id: X\n    type: PERMIT\n",
	})

	tests := []struct {
		name     string
		paths    []string
		wantCode int
		wantOut  string
	}{
		{"examples", []string{examplesDir}, cli.ExitOK, "OK " + examplesDir},
		{"broken", []string{broken}, cli.ExitFailure, "FAIL " + broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := useConfig(t, nil)
			lintFlags.strict = false
			lintFlags.format = "text"

			err := lintPolicies(withContext(lintCmd), tt.paths)
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Fatalf("exit code = %d (err %v), want %d", got, err, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output missing %q:\n%s", tt.wantOut, out.String())
			}
		})
	}
}

func TestLintJSON(t *testing.T) {
	out := useConfig(t, nil)
	lintFlags.strict = false
	lintFlags.format = "json"
	t.Cleanup(func() { lintFlags.format = "text" })

	if err := lintPolicies(withContext(lintCmd), nil); err != nil {
		t.Fatalf("lint: %v", err)
	}
	var results []lintResult
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || !results[0].Valid || len(results[0].Loaded) != 4 || results[0].Suites != 3 {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestSchemaFields(t *testing.T) {
	out := useConfig(t, nil)
	schemaFlags.policy = "dress-code"
	schemaFlags.version = ""
	schemaFlags.part = "fields"
	schemaFlags.format = "text"

	if err := showSchema(withContext(schemaCmd), nil); err != nil {
		t.Fatalf("schema: %v", err)
	}
	s := out.String()
	for _, want := range []string{"PATH", "context.day_of_week", "request.item"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestSchemaCase(t *testing.T) {
	out := useConfig(t, nil)
	schemaFlags.policy = "dress-code"
	schemaFlags.part = "case"
	schemaFlags.format = "json"

	if err := showSchema(withContext(schemaCmd), nil); err != nil {
		t.Fatalf("schema: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["type"] != "object" || doc["$schema"] == nil {
		t.Errorf("unexpected schema %v", doc)
	}

	schemaFlags.format = "text"
	var ce *cli.ConfigError
	if err := showSchema(withContext(schemaCmd), nil); !errors.As(err, &ce) {
		t.Errorf("expected ConfigError for text case schema, got %v", err)
	}
}

func TestPoliciesCSV(t *testing.T) {
	out := useConfig(t, nil)
	policiesFlags.format = "csv"
	policiesFlags.latest = false
	policiesFlags.watch = false

	if err := listPolicies(withContext(policiesCmd), nil); err != nil {
		t.Fatalf("policies: %v", err)
	}
	rows, err := csv.NewReader(out).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header and 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "POLICY" || rows[0][7] != "EXTENDS" {
		t.Errorf("header = %v", rows[0])
	}
	var travel []string
	for _, r := range rows[1:] {
		if r[0] == "travel" {
			travel = r
		}
	}
	if travel == nil || !strings.HasPrefix(travel[7], "travel-base@") {
		t.Errorf("travel row = %v", travel)
	}
}

func TestEffectiveWindow(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		from, to *time.Time
		want     string
	}{
		{nil, nil, "always"},
		{&from, nil, "2024-01-01.."},
		{nil, &to, "..2024-12-31"},
		{&from, &to, "2024-01-01..2024-12-31"},
	}
	for _, tt := range tests {
		if got := effectiveWindow(tt.from, tt.to); got != tt.want {
			t.Errorf("effectiveWindow = %q, want %q", got, tt.want)
		}
	}
}

func TestTraceFilterQuery(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	q, err := traceFilter{policy: "expenses", verdict: "NON_COMPLIANT", since: time.Hour, order: "ASC"}.query(now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q.PolicyID != "expenses" || q.Verdict != "non_compliant" || !q.Ascending() {
		t.Errorf("unexpected query %+v", q)
	}
	if q.StartTime == nil || !q.StartTime.Equal(now.Add(-time.Hour)) {
		t.Errorf("start = %v", q.StartTime)
	}

	bad := []traceFilter{
		{since: -time.Minute},
		{since: time.Hour, from: "2026-01-01"},
		{from: "soon"},
		{from: "2026-02-01", to: "2026-01-01"},
		{order: "sideways"},
	}
	for _, f := range bad {
		if _, err := f.query(now); err == nil {
			t.Errorf("expected error for %+v", f)
		}
	}
}

func resetTraceFlags() {
	traceFlags.filter = traceFilter{order: "desc"}
	traceFlags.format = "json"
	traceFlags.limit = audit.DefaultQueryLimit
	traceFlags.offset = 0
	traceFlags.output = ""
	traceFlags.pretty = false
}

func TestTraceRoundTrip(t *testing.T) {
	out := useConfig(t, useSQLite(t))
	resetEvalFlags()
	resetTraceFlags()
	t.Cleanup(resetEvalFlags)
	t.Cleanup(resetTraceFlags)

	// Two decisions persisted by separate command runs.
	evalFlags.policy = "dress-code"
	evalFlags.format = "json"
	evalFlags.caseFile = writeCase(t, casualFriday)
	if err := runEval(withContext(evalCmd), nil); err != nil {
		t.Fatalf("eval: %v", err)
	}
	var first struct {
		TraceID   string `json:"trace_id"`
		Persisted bool   `json:"persisted"`
	}
	if err := json.Unmarshal(out.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !first.Persisted {
		t.Fatal("decision not persisted")
	}
	out.Reset()
	evalFlags.caseFile = writeCase(t, "request: {item: JEANS}\ncontext: {day_of_week: MONDAY}\n")
	if err := runEval(withContext(evalCmd), nil); err != nil {
		t.Fatalf("eval: %v", err)
	}

	t.Run("get", func(t *testing.T) {
		out.Reset()
		traceFlags.format = "json"
		if err := getTrace(withContext(traceGetCmd), []string{first.TraceID}); err != nil {
			t.Fatalf("get: %v", err)
		}
		var tr engine.Trace
		if err := json.Unmarshal(out.Bytes(), &tr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if tr.TraceID != first.TraceID || tr.Winner != "CASUAL_FRIDAY" {
			t.Errorf("unexpected trace %s winner %s", tr.TraceID, tr.Winner)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		err := getTrace(withContext(traceGetCmd), []string{"no-such-trace"})
		if !errors.Is(err, audit.ErrTraceNotFound) {
			t.Errorf("expected ErrTraceNotFound, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		out.Reset()
		resetTraceFlags()
		traceFlags.format = "csv"
		traceFlags.filter.verdict = "non_compliant"
		if err := listTraces(withContext(traceListCmd), nil); err != nil {
			t.Fatalf("list: %v", err)
		}
		rows, err := csv.NewReader(out).ReadAll()
		if err != nil {
			t.Fatalf("parse csv: %v", err)
		}
		if len(rows) != 2 || rows[1][4] != "non_compliant" || rows[1][5] != "JEANS_NOT_ALLOWED" {
			t.Errorf("unexpected rows %v", rows)
		}
	})

	t.Run("export", func(t *testing.T) {
		resetTraceFlags()
		traceFlags.output = filepath.Join(t.TempDir(), "traces.json")
		traceFlags.filter.order = "asc"
		if err := exportTraces(withContext(traceExportCmd), nil); err != nil {
			t.Fatalf("export: %v", err)
		}
		data, err := os.ReadFile(traceFlags.output)
		if err != nil {
			t.Fatal(err)
		}
		var records []audit.Record
		if err := json.Unmarshal(data, &records); err != nil {
			t.Fatalf("decode: %v\n%s", err, data)
		}
		if len(records) != 2 || records[0].TraceID != first.TraceID {
			t.Errorf("unexpected export of %d records", len(records))
		}
	})

	t.Run("prune", func(t *testing.T) {
		out.Reset()
		if err := pruneTraces(withContext(tracePruneCmd), nil); err != nil {
			t.Fatalf("prune: %v", err)
		}
		if got := strings.TrimSpace(out.String()); got != "Pruned 0 traces" {
			t.Errorf("output = %q", got)
		}
	})
}

func TestTracesDisabled(t *testing.T) {
	useConfig(t, func(cfg *config.Config) { cfg.Audit.Enabled = false })
	resetTraceFlags()
	t.Cleanup(resetTraceFlags)

	if err := pruneTraces(withContext(tracePruneCmd), nil); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("prune: expected traces disabled, got %v", err)
	}
	if err := getTrace(withContext(traceGetCmd), []string{"x"}); err == nil {
		t.Error("get: expected error")
	}
}
