package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// Recorder receives evaluation measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// RecordEvaluation is called once per completed evaluation.
	RecordEvaluation(policyID, version, verdict string, duration time.Duration)

	// RecordStatement is called once per statement trace entry.
	RecordStatement(statementType, status string)

	// RecordParamError is called for every param that failed to bind.
	RecordParamError(kind string)
}

// Engine evaluates compiled programs against Cases. It holds no per-call
// state, so one Engine serves any number of concurrent evaluations.
type Engine struct {
	// config contains engine configuration
	config *Config

	// logger for structured logging
	logger *slog.Logger

	// clock supplies the evaluation instant when a request carries none
	clock func() time.Time

	// recorder receives measurements, may be nil
	recorder Recorder
}

// NewEngine creates a new decision engine.
func NewEngine(config *Config, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config: config,
		logger: logger.With("component", "policy.engine"),
		clock:  time.Now,
	}, nil
}

// WithClock replaces the wall clock used for now.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// WithRecorder registers a measurement recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Evaluate decides req against prog. Runtime problems inside statements
// become outcomes and never an error; Evaluate fails only for a nil program,
// an invalid profile or a cancelled context.
func (e *Engine) Evaluate(ctx context.Context, prog *Program, req *Request) (*Decision, error) {
	if prog == nil {
		return nil, ErrNilProgram
	}
	if req == nil {
		req = &Request{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile := e.config.DefaultProfile
	if req.Profile != nil {
		profile = *req.Profile
		if err := profile.Validate(); err != nil {
			return nil, err
		}
	}

	started := e.clock()
	now := started
	if req.Now != nil {
		now = *req.Now
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	doc := prog.doc
	params, paramErrs := BindParams(doc.Params, req.Params, e.config.StrictParams)

	r := &run{
		engine:  e,
		prog:    prog,
		profile: profile,
		root:    doc.Ref(),
		ec:      newEvaluationContext(prog, e.config, req.Case, params, now),
		seen:    make(map[string]bool),
		tagSeen: make(map[string]bool),
		trace: &Trace{
			TraceID:           traceID,
			Policy:            doc.Ref(),
			Chain:             chainOf(doc),
			Now:               now,
			InEffectiveWindow: doc.Effective.Contains(now),
			Params:            params,
			Profile:           profile,
			StartedAt:         started,
		},
	}

	if !r.trace.InEffectiveWindow {
		e.logger.Debug("evaluating outside effective window",
			"policy", doc.Ref().String(),
			"now", now,
			"trace_id", traceID,
		)
	}

	var decision *Decision
	if len(paramErrs) > 0 {
		decision = r.paramFailure(paramErrs)
	} else {
		if err := r.evaluate(ctx); err != nil {
			return nil, err
		}
		decision = r.decide()
	}

	r.trace.Duration = e.clock().Sub(started)
	decision.TraceID = traceID
	decision.Trace = r.trace
	e.record(r.trace)

	e.logger.Debug("evaluation complete",
		"policy", doc.Ref().String(),
		"verdict", decision.Verdict,
		"winner", r.trace.Winner,
		"statements", len(r.trace.Statements),
		"trace_id", traceID,
		"duration", r.trace.Duration,
	)
	return decision, nil
}

func (e *Engine) record(t *Trace) {
	if e.recorder == nil {
		return
	}
	for _, st := range t.Statements {
		e.recorder.RecordStatement(string(st.Type), string(st.Status))
	}
	e.recorder.RecordEvaluation(t.Policy.PolicyID, t.Policy.Version, string(t.Verdict), t.Duration)
}

func chainOf(doc *ast.Document) []ast.PolicyRef {
	if len(doc.Chain) > 0 {
		return doc.Chain
	}
	return []ast.PolicyRef{doc.Ref()}
}

// run is the state of one evaluation.
type run struct {
	engine  *Engine
	prog    *Program
	profile Profile
	root    ast.PolicyRef
	ec      *EvaluationContext
	trace   *Trace

	agg      aggregator
	deferred deferredQueue
	halted   bool

	required []string
	seen     map[string]bool
	tags     []string
	tagSeen  map[string]bool
	routes   []Route
}

// evaluate runs DEFINE statements in document order, then every other
// statement by descending priority.
func (r *run) evaluate(ctx context.Context) error {
	for _, s := range r.prog.defines {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.evaluateDefine(s)
	}

	for i, s := range r.prog.ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.offerDeferred(r.deferred.popAtLeast(s.Priority))

		st := newStatementTrace(s, r.root)
		var out *ast.Outcome
		switch {
		case r.halted:
			st.skip(SkipHalted)
		case !r.profile.Includes(s.Type):
			st.skip(SkipProfile)
		default:
			out = r.evaluateStatement(s, &st)
		}
		r.trace.Statements = append(r.trace.Statements, st)
		if out != nil {
			r.offer(candidate{statementID: s.ID, priority: s.Priority, outcome: *out})
		}

		if !r.halted && r.agg.halted(r.prog.overrideAfter[i]) {
			r.halted = true
			r.trace.Halted = true
		}
	}
	r.offerDeferred(r.deferred.popAtLeast(math.MinInt))
	return nil
}

// evaluateDefine writes derived values. A DEFINE that cannot resolve leaves
// its targets unset and competes with the document's missing or error
// default at its own priority, without override or halt.
func (r *run) evaluateDefine(s *ast.Statement) {
	st := newStatementTrace(s, r.root)
	defer func() { r.trace.Statements = append(r.trace.Statements, st) }()

	if s.AppliesWhen != nil {
		ok, err := r.ec.match(s.AppliesWhen, 1)
		if err != nil {
			r.deferDefine(s, r.unresolved(s, &st, err, true))
			return
		}
		if !ok {
			st.skip(SkipNotApplicable)
			return
		}
	}

	res := r.ec.execute(s)
	if len(res.defined) > 0 {
		st.Defined = res.defined
	}
	if res.err != nil {
		r.deferDefine(s, r.unresolved(s, &st, res.err, true))
		return
	}
	st.Status = StatusApplied
	st.Bucket = ast.BucketApply
}

func (r *run) deferDefine(s *ast.Statement, out *ast.Outcome) {
	if out == nil {
		return
	}
	c := candidate{statementID: s.ID, priority: s.Priority, outcome: *out}
	c.outcome.Override = false
	c.outcome.Halt = false
	r.deferred.push(c)
}

// evaluateStatement evaluates applies_when and the rule of a non-DEFINE
// statement, filling st. It returns the outcome to aggregate, or nil.
func (r *run) evaluateStatement(s *ast.Statement, st *StatementTrace) *ast.Outcome {
	if s.AppliesWhen != nil {
		ok, err := r.ec.match(s.AppliesWhen, 1)
		if err != nil {
			return r.unresolved(s, st, err, true)
		}
		if !ok {
			st.skip(SkipNotApplicable)
			return nil
		}
	}

	res := r.ec.execute(s)
	if res.err != nil {
		// ignore never applies to the fields a REQUIRE checks
		return r.unresolved(s, st, res.err, s.Type != ast.StatementRequire)
	}
	if res.bucket == "" {
		st.skip(SkipRuleNotTriggered)
		return nil
	}

	st.Bucket = res.bucket
	st.Status = StatusApplied
	if res.bucket == ast.BucketViolation {
		st.Status = StatusViolation
	}
	if res.route != nil {
		st.Route = res.route
		r.routes = append(r.routes, *res.route)
	}
	if len(res.tags) > 0 {
		st.Tags = res.tags
		for _, tag := range res.tags {
			if !r.tagSeen[tag] {
				r.tagSeen[tag] = true
				r.tags = append(r.tags, tag)
			}
		}
	}
	return r.selectOutcome(s, st, res.bucket)
}

// unresolved records a missing or errored statement and selects its outcome.
func (r *run) unresolved(s *ast.Statement, st *StatementTrace, err error, ignorable bool) *ast.Outcome {
	var ee *EvalError
	if errors.As(err, &ee) && ee.StatementID == "" {
		ee.StatementID = s.ID
	}

	if paths := MissingPaths(err); paths != nil {
		st.Missing = paths
		if ignorable && r.profile.MissingDataBehavior == MissingIgnore {
			st.skip(SkipMissingIgnored)
			return nil
		}
		st.Status = StatusMissing
		st.Bucket = ast.BucketMissing
		for _, p := range paths {
			if !r.seen[p] {
				r.seen[p] = true
				r.required = append(r.required, p)
			}
		}
		return r.selectOutcome(s, st, ast.BucketMissing)
	}

	st.Status = StatusErrored
	st.Bucket = ast.BucketError
	st.Error = err.Error()
	r.engine.logger.Debug("statement evaluation error",
		"policy", r.root.String(),
		"statement", s.ID,
		"error", err,
		"trace_id", r.trace.TraceID,
	)
	return r.selectOutcome(s, st, ast.BucketError)
}

// selectOutcome fills the outcome of st and returns it when it competes.
func (r *run) selectOutcome(s *ast.Statement, st *StatementTrace, b ast.Bucket) *ast.Outcome {
	out, implicit, competing := resolveOutcome(r.prog.doc.Defaults, s, b)
	if b == ast.BucketMissing && r.profile.MissingDataBehavior == MissingAsk {
		out.Verdict = ast.VerdictNeedsInfo
	}
	st.Outcome = &out
	st.Implicit = implicit
	st.Competing = competing
	if !competing {
		return nil
	}
	return &out
}

func (r *run) offer(c candidate) {
	if r.agg.offer(c) {
		r.trace.Winner = c.statementID
	}
}

func (r *run) offerDeferred(cs []candidate) {
	for _, c := range cs {
		r.offer(c)
	}
}

// decide builds the decision from the aggregation winner.
func (r *run) decide() *Decision {
	d := &Decision{
		Verdict:        ast.VerdictNoChange,
		ReasonCodes:    []string{},
		RequiredFields: nonNil(r.required),
		Tags:           r.tags,
		Routes:         r.routes,
	}
	if w := r.agg.winner; w != nil {
		d.Verdict = w.outcome.Verdict
		if w.outcome.ReasonCode != "" {
			d.ReasonCodes = append(d.ReasonCodes, w.outcome.ReasonCode)
		}
	}
	if r.engine.config.TagsInReasonCodes {
		d.ReasonCodes = append(d.ReasonCodes, r.tags...)
	}
	r.fillTrace(d)
	return d
}

// paramFailure skips every statement and decides with the document's error
// default. Reason codes name each failed param.
func (r *run) paramFailure(errs []*ParamError) *Decision {
	for _, s := range r.prog.defines {
		st := newStatementTrace(s, r.root)
		st.skip(SkipParamError)
		r.trace.Statements = append(r.trace.Statements, st)
	}
	for _, s := range r.prog.ordered {
		st := newStatementTrace(s, r.root)
		st.skip(SkipParamError)
		r.trace.Statements = append(r.trace.Statements, st)
	}

	out := ast.Outcome{Verdict: ast.VerdictNeedsReview}
	if def := r.prog.doc.Defaults.OnError; def != nil {
		out = *def
	}
	d := &Decision{
		Verdict:        out.Verdict,
		ReasonCodes:    make([]string, 0, len(errs)+1),
		RequiredFields: []string{},
	}
	for _, pe := range errs {
		d.ReasonCodes = append(d.ReasonCodes, pe.ReasonCode())
		r.trace.ParamErrors = append(r.trace.ParamErrors, pe.Error())
		if r.engine.recorder != nil {
			r.engine.recorder.RecordParamError(string(pe.Kind))
		}
	}
	if out.ReasonCode != "" {
		d.ReasonCodes = append(d.ReasonCodes, out.ReasonCode)
	}

	r.engine.logger.Warn("param binding failed",
		"policy", r.root.String(),
		"errors", len(errs),
		"trace_id", r.trace.TraceID,
	)
	r.fillTrace(d)
	return d
}

func (r *run) fillTrace(d *Decision) {
	r.trace.Verdict = d.Verdict
	r.trace.ReasonCodes = d.ReasonCodes
	r.trace.RequiredFields = d.RequiredFields
	r.trace.Tags = d.Tags
	r.trace.Routes = d.Routes
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
