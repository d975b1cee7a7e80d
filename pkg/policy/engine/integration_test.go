package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"mercator-hq/bdl/pkg/bdl"
	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/temporal"
	"mercator-hq/bdl/pkg/policy/composer"
)

const examplesDir = "../../../examples/policies"

type exampleSuite struct {
	PolicyID string        `yaml:"policy_id"`
	Version  string        `yaml:"version"`
	Tests    []exampleCase `yaml:"tests"`
}

type exampleCase struct {
	ID       string                 `yaml:"id"`
	Params   map[string]interface{} `yaml:"params"`
	Now      string                 `yaml:"now"`
	Case     map[string]interface{} `yaml:"case"`
	Expected struct {
		Verdict        ast.Verdict `yaml:"verdict"`
		ReasonCodes    []string    `yaml:"reason_codes"`
		RequiredFields []string    `yaml:"required_fields"`
	} `yaml:"expected"`
}

// loadExamples parses every example policy into a composer loader.
func loadExamples(t *testing.T) composer.Loader {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(examplesDir, "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	docs := make(map[ast.PolicyRef]*ast.Document)
	for _, f := range files {
		if strings.HasSuffix(f, ".tests.yaml") {
			continue
		}
		doc, err := bdl.ParseAndValidate(f)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		docs[doc.Ref()] = doc
	}
	return composer.LoaderFunc(func(_ context.Context, ref ast.PolicyRef) (*ast.Document, error) {
		if d, ok := docs[ref]; ok {
			return d, nil
		}
		return nil, fmt.Errorf("example %s not found", ref)
	})
}

func sorted(s []string) []string {
	out := append([]string{}, s...)
	sort.Strings(out)
	return out
}

func TestExampleSuites(t *testing.T) {
	suites, err := filepath.Glob(filepath.Join(examplesDir, "*.tests.yaml"))
	if err != nil || len(suites) == 0 {
		t.Fatalf("no example suites found: %v", err)
	}

	comp := composer.New(loadExamples(t))
	eng := newTestEngine(t, nil)

	for _, path := range suites {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var suite exampleSuite
		if err := yaml.Unmarshal(data, &suite); err != nil {
			t.Fatalf("%s: %v", path, err)
		}

		doc, err := comp.Resolve(context.Background(), ast.PolicyRef{PolicyID: suite.PolicyID, Version: suite.Version})
		if err != nil {
			t.Fatalf("%s: resolve: %v", path, err)
		}
		prog, err := Compile(doc)
		if err != nil {
			t.Fatalf("%s: compile: %v", path, err)
		}

		for _, tc := range suite.Tests {
			t.Run(suite.PolicyID+"/"+tc.ID, func(t *testing.T) {
				req := &Request{Case: tc.Case, Params: tc.Params}
				if tc.Now != "" {
					now, err := temporal.ParseString(tc.Now)
					if err != nil {
						t.Fatal(err)
					}
					req.Now = &now
				}
				d := evaluate(t, eng, prog, req)

				if d.Verdict != tc.Expected.Verdict {
					t.Errorf("verdict = %s, want %s (winner %q)", d.Verdict, tc.Expected.Verdict, d.Trace.Winner)
				}
				if tc.Expected.ReasonCodes != nil {
					if diff := cmp.Diff(sorted(tc.Expected.ReasonCodes), sorted(d.ReasonCodes)); diff != "" {
						t.Errorf("reason codes (-want +got):\n%s", diff)
					}
				}
				if tc.Expected.RequiredFields != nil {
					if diff := cmp.Diff(sorted(tc.Expected.RequiredFields), sorted(d.RequiredFields)); diff != "" {
						t.Errorf("required fields (-want +got):\n%s", diff)
					}
				}
			})
		}
	}
}

func TestInheritedStatementsAreMarked(t *testing.T) {
	comp := composer.New(loadExamples(t))
	doc, err := comp.Resolve(context.Background(), ast.PolicyRef{PolicyID: "travel", Version: "2.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	prog, err := Compile(doc)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d := evaluate(t, newTestEngine(t, nil), prog, &Request{
		Case: map[string]interface{}{
			"traveler": map[string]interface{}{"id": "T-1", "grade": "STAFF"},
			"travel":   map[string]interface{}{"air_scope": "INTERNATIONAL", "advance_booking_days": 30},
		},
		Now: &now,
	})

	if diff := cmp.Diff(doc.Chain, d.Trace.Chain); diff != "" {
		t.Errorf("chain (-want +got):\n%s", diff)
	}
	for _, tt := range []struct {
		id        string
		inherited bool
	}{
		{"TRAVELER_PROFILE", true},
		{"DOMESTIC_ADVANCE_BOOKING", false},
		{"TRAVEL_APPROVAL", false},
		{"INTERNATIONAL_ADVANCE_BOOKING", true},
	} {
		if st := statementTrace(d, tt.id); st == nil || st.Inherited != tt.inherited {
			t.Errorf("%s inherited = %v, want %v", tt.id, st != nil && st.Inherited, tt.inherited)
		}
	}
	if len(d.Routes) != 1 || d.Routes[0].To != "travel-desk" {
		t.Errorf("routes = %+v", d.Routes)
	}
	if !d.Trace.InEffectiveWindow {
		t.Error("2024-03-01 is inside the effective window")
	}
}
