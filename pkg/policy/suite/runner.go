package suite

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/policy/engine"
)

// Report is the outcome of running a suite.
type Report struct {
	Policy   ast.PolicyRef `json:"policy"`
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Results  []Result      `json:"results"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the outcome of one test case.
type Result struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	Passed      bool          `json:"passed"`
	Expected    Expectation   `json:"expected"`
	Actual      Actual        `json:"actual"`
	Mismatches  []string      `json:"mismatches,omitempty"`
	TraceID     string        `json:"trace_id,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	// Trace is the full evaluation trace of the case.
	Trace *engine.Trace `json:"-"`
}

// Actual is the part of a decision a test case is compared against.
type Actual struct {
	Verdict        ast.Verdict `json:"verdict"`
	ReasonCodes    []string    `json:"reason_codes"`
	RequiredFields []string    `json:"required_fields"`
}

// Runner runs suites through an engine.
type Runner struct {
	engine      *engine.Engine
	logger      *slog.Logger
	concurrency int
}

// NewRunner creates a runner that evaluates cases with eng.
func NewRunner(eng *engine.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:      eng,
		logger:      logger.With("component", "policy.suite"),
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithConcurrency bounds the number of cases evaluated at once.
func (r *Runner) WithConcurrency(n int) *Runner {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// Run evaluates the selected test cases of s against prog. An empty ids
// slice runs every case. Results keep suite order regardless of concurrency.
func (r *Runner) Run(ctx context.Context, prog *engine.Program, s *Suite, ids []string) (*Report, error) {
	if prog == nil {
		return nil, engine.ErrNilProgram
	}
	cases, err := s.selectCases(ids)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]Result, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, tc := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runCase(gctx, prog, tc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Policy:   prog.Ref(),
		Total:    len(results),
		Results:  results,
		Duration: time.Since(start),
	}
	for _, res := range results {
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	r.logger.Info("suite run complete",
		"policy", report.Policy.String(),
		"total", report.Total,
		"passed", report.Passed,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (s *Suite) selectCases(ids []string) ([]*TestCase, error) {
	if len(ids) == 0 {
		return s.Tests, nil
	}
	out := make([]*TestCase, 0, len(ids))
	for _, id := range ids {
		tc := s.Get(id)
		if tc == nil {
			return nil, fmt.Errorf("%w: %s in %s", ErrUnknownTest, id, s.Ref())
		}
		out = append(out, tc)
	}
	return out, nil
}

func (r *Runner) runCase(ctx context.Context, prog *engine.Program, tc *TestCase) Result {
	start := time.Now()
	res := Result{
		ID:          tc.ID,
		Description: tc.Description,
		Expected:    tc.Expected,
	}
	defer func() { res.Duration = time.Since(start) }()

	req, err := tc.Request()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	d, err := r.engine.Evaluate(ctx, prog, req)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.TraceID = d.TraceID
	res.Trace = d.Trace
	res.Actual = Actual{
		Verdict:        d.Verdict,
		ReasonCodes:    d.ReasonCodes,
		RequiredFields: d.RequiredFields,
	}
	res.Mismatches = Compare(tc.Expected, res.Actual)
	res.Passed = len(res.Mismatches) == 0

	if !res.Passed {
		r.logger.Debug("test case failed",
			"policy", prog.Ref().String(),
			"test", tc.ID,
			"mismatches", res.Mismatches,
			"trace_id", d.TraceID,
		)
	}
	return res
}

// Compare returns a description of every way actual differs from want.
// Reason codes and required fields are compared as sets of identifiers,
// ignoring order, and only when the expectation lists them.
func Compare(want Expectation, actual Actual) []string {
	var out []string
	if want.Verdict != actual.Verdict {
		out = append(out, fmt.Sprintf("verdict: want %s, got %s", want.Verdict, actual.Verdict))
	}
	if want.ReasonCodes != nil && !sameElements(want.ReasonCodes, actual.ReasonCodes) {
		out = append(out, fmt.Sprintf("reason_codes: want %v, got %v", want.ReasonCodes, actual.ReasonCodes))
	}
	if want.RequiredFields != nil && !sameElements(want.RequiredFields, actual.RequiredFields) {
		out = append(out, fmt.Sprintf("required_fields: want %v, got %v", want.RequiredFields, actual.RequiredFields))
	}
	return out
}

func sameElements(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
