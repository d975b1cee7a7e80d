// Package decision is the entry point for callers that decide Cases.
//
// A Service ties together the policy manager (which versions exist and
// their compiled programs), the engine (evaluation), the trace recorder
// (audit persistence) and telemetry. It exposes the operations the CLI and
// any embedding service need:
//
//   - EvaluateCase decides a Case against a policy version
//   - GetSchema describes the Case shape and params a version reads
//   - ListPolicies lists every loaded version
//   - GetTrace returns a persisted evaluation trace
//   - ListTests and RunTests expose the test suites shipped with policies
//
// Policy selection is the same for every operation: an explicit policy id
// and version select that version, a policy id alone selects its latest
// version, and no policy id selects the latest version of the only loaded
// policy.
//
// # Usage
//
//	mgr, _ := manager.NewManager(cfg.ManagerConfig(), logger)
//	eng, _ := engine.NewEngine(cfg.EngineConfig(), logger)
//	svc := decision.NewService(mgr, eng, logger,
//		decision.WithRecorder(rec),
//		decision.WithTracer(tracer),
//	)
//	if _, err := svc.Load(ctx); err != nil {
//		return err
//	}
//	resp, err := svc.EvaluateCase(ctx, &decision.EvaluateRequest{
//		PolicyID: "expenses",
//		Case:     c,
//	})
//
// Evaluation problems inside a policy never surface as errors: they become
// verdicts. EvaluateCase fails only when no policy version can be selected,
// when the request itself is unusable (invalid profile, Case rejected by
// schema validation) or when the context is cancelled.
package decision
