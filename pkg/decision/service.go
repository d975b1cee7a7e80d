package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/audit/recorder"
	"mercator-hq/bdl/pkg/bdl/schema"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/manager"
	"mercator-hq/bdl/pkg/policy/suite"
	"mercator-hq/bdl/pkg/telemetry/logging"
	"mercator-hq/bdl/pkg/telemetry/tracing"
)

// Service answers decision requests. It is safe for concurrent use.
type Service struct {
	manager  *manager.Manager
	engine   *engine.Engine
	recorder *recorder.Recorder
	tracer   *tracing.Tracer
	observer TestObserver
	logger   *slog.Logger

	validateCase    bool
	testConcurrency int

	mu      sync.Mutex
	schemas map[string]*compiledSchema
}

type compiledSchema struct {
	schema    *schema.PolicySchema
	validator *schema.Validator
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder persists every evaluation trace through r.
func WithRecorder(r *recorder.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithTracer wraps operations in spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTestObserver receives the results of RunTests.
func WithTestObserver(o TestObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithCaseValidation checks Cases against the policy's generated JSON Schema
// before evaluating them.
func WithCaseValidation(enabled bool) Option {
	return func(s *Service) { s.validateCase = enabled }
}

// WithTestConcurrency bounds the test cases run in parallel.
func WithTestConcurrency(n int) Option {
	return func(s *Service) { s.testConcurrency = n }
}

// NewService creates a Service over a policy manager and an engine.
func NewService(mgr *manager.Manager, eng *engine.Engine, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		manager: mgr,
		engine:  eng,
		tracer:  tracing.Noop(),
		logger:  logger.With("component", "decision"),
		schemas: make(map[string]*compiledSchema),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load performs the initial policy load.
func (s *Service) Load(ctx context.Context) (*manager.LoadResult, error) {
	return s.compose(ctx, s.manager.LoadPolicies)
}

// Reload reloads policies, keeping the last good version of anything that
// fails.
func (s *Service) Reload(ctx context.Context) (*manager.LoadResult, error) {
	return s.compose(ctx, s.manager.ReloadPolicies)
}

func (s *Service) compose(ctx context.Context, load func(context.Context) (*manager.LoadResult, error)) (*manager.LoadResult, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanCompose)
	defer span.End()

	res, err := load(ctx)
	tracing.SetError(span, err)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	clear(s.schemas)
	s.mu.Unlock()
	return res, nil
}

// Watch reloads policies on file changes until ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	return s.manager.Watch(ctx)
}

// Manager returns the policy manager.
func (s *Service) Manager() *manager.Manager {
	return s.manager
}

func (s *Service) resolve(policyID, version string) (*manager.Entry, error) {
	if policyID == "" {
		if version != "" {
			return nil, errors.New("version given without policy_id")
		}
		return s.manager.Default()
	}
	return s.manager.Get(policyID, version)
}

// EvaluateCase decides a Case. Every evaluation is persisted when a recorder
// is configured; a failed write is logged and does not change the decision.
func (s *Service) EvaluateCase(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	if req == nil {
		req = &EvaluateRequest{}
	}
	ctx, span := s.tracer.Start(ctx, tracing.SpanEvaluateCase)
	defer span.End()

	entry, err := s.resolve(req.PolicyID, req.Version)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetPolicyAttributes(span, entry.Ref.PolicyID, entry.Ref.Version)
	ctx = logging.WithPolicy(ctx, entry.Ref.String())
	if id := tracing.TraceID(ctx); id != "" {
		ctx = logging.WithSpanID(logging.WithTraceID(ctx, id), tracing.SpanID(ctx))
	}
	log := logging.FromContext(ctx, s.logger)

	if s.validateCase {
		cs, err := s.compiled(entry)
		if err != nil {
			tracing.SetError(span, err)
			return nil, err
		}
		if err := cs.validator.ValidateCase(req.Case); err != nil {
			err = &CaseError{Policy: entry.Ref, Cause: err}
			tracing.SetError(span, err)
			log.Warn("case rejected by schema", "error", err)
			return nil, err
		}
	}

	d, err := s.engine.Evaluate(ctx, entry.Program, &engine.Request{
		Case:    req.Case,
		Params:  req.Params,
		Profile: req.Profile,
		Now:     req.Now,
	})
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetDecisionAttributes(span, d.TraceID, string(d.Verdict), d.ReasonCodes,
		len(d.RequiredFields), d.Trace.Winner, d.Trace.Halted)
	tracing.SetError(span, nil)

	resp := &EvaluateResponse{
		Policy:         entry.Ref,
		Verdict:        d.Verdict,
		ReasonCodes:    d.ReasonCodes,
		RequiredFields: d.RequiredFields,
		Tags:           d.Tags,
		Routes:         d.Routes,
		TraceID:        d.TraceID,
	}
	if req.IncludeTrace {
		resp.Trace = d.Trace
	}

	if s.recorder != nil && s.recorder.Enabled() {
		if err := s.recorder.Record(ctx, d.Trace); err != nil {
			log.Error("failed to persist trace", "trace_id", d.TraceID, "error", err)
		} else {
			resp.Persisted = true
		}
	}

	log.Info("case evaluated",
		"trace_id", d.TraceID,
		"verdict", d.Verdict,
		"reason_codes", d.ReasonCodes,
		"required_fields", len(d.RequiredFields),
	)
	return resp, nil
}

// GetSchema describes the Case shape and params of a policy version.
func (s *Service) GetSchema(policyID, version string) (*schema.PolicySchema, error) {
	entry, err := s.resolve(policyID, version)
	if err != nil {
		return nil, err
	}
	cs, err := s.compiled(entry)
	if err != nil {
		return nil, err
	}
	return cs.schema, nil
}

// compiled returns the generated and compiled schema of entry, cached by
// content hash so a reloaded version regenerates.
func (s *Service) compiled(entry *manager.Entry) (*compiledSchema, error) {
	key := entry.Ref.String() + "#" + entry.Hash

	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.schemas[key]; ok {
		return cs, nil
	}

	cfg := s.engine.Config()
	ps := schema.Generate(entry.Effective, schema.Options{
		EvidenceField: cfg.EvidenceField,
		StrictParams:  cfg.StrictParams,
	})
	v, err := schema.Compile(ps)
	if err != nil {
		return nil, fmt.Errorf("compile schema of %s: %w", entry.Ref, err)
	}
	cs := &compiledSchema{schema: ps, validator: v}
	s.schemas[key] = cs
	return cs, nil
}

// ListPolicies lists every loaded policy version.
func (s *Service) ListPolicies() []manager.PolicyInfo {
	return s.manager.List()
}

// GetTrace returns a persisted trace.
func (s *Service) GetTrace(ctx context.Context, traceID string) (*engine.Trace, error) {
	if s.recorder == nil {
		return nil, ErrTracesDisabled
	}
	rec, err := s.recorder.Get(ctx, traceID)
	if err != nil {
		return nil, err
	}
	return rec.Trace()
}

// ListTraces returns persisted trace records matching q.
func (s *Service) ListTraces(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	if s.recorder == nil {
		return nil, ErrTracesDisabled
	}
	if q == nil {
		q = &audit.Query{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.recorder.Store().List(ctx, q)
}

// ListTests lists the test cases shipped with a policy version. A version
// without a suite lists no tests.
func (s *Service) ListTests(policyID, version string) (*TestList, error) {
	entry, err := s.resolve(policyID, version)
	if err != nil {
		return nil, err
	}
	out := &TestList{Policy: entry.Ref, Tests: []suite.Summary{}}
	if entry.Suite != nil {
		out.Tests = entry.Suite.List()
	}
	return out, nil
}

// RunTests runs the suite of a policy version. Empty ids run every case.
func (s *Service) RunTests(ctx context.Context, policyID, version string, ids []string) (*suite.Report, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanRunTests)
	defer span.End()

	entry, err := s.resolve(policyID, version)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetPolicyAttributes(span, entry.Ref.PolicyID, entry.Ref.Version)
	if entry.Suite == nil {
		if len(ids) > 0 {
			err := fmt.Errorf("%s: %w", entry.Ref, ErrNoSuite)
			tracing.SetError(span, err)
			return nil, err
		}
		return &suite.Report{Policy: entry.Ref, Results: []suite.Result{}}, nil
	}

	runner := suite.NewRunner(s.engine, s.logger)
	if s.testConcurrency > 0 {
		runner = runner.WithConcurrency(s.testConcurrency)
	}
	report, err := runner.Run(ctx, entry.Program, entry.Suite, ids)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetTestAttributes(span, report.Total, report.Failed)
	tracing.SetError(span, nil)

	if s.observer != nil {
		s.observer.RecordTestRun(entry.Ref.PolicyID, report.Passed, report.Failed)
	}
	return report, nil
}
