// Package health serves liveness and readiness endpoints for long-running
// commands.
//
// Readiness aggregates named checks registered by the command: whether a
// policy load succeeded, whether the trace store answers and whether the
// policy repository can be pulled. Checks run concurrently, each bounded by
// the checker's timeout.
//
//	checker := health.New(5 * time.Second)
//	checker.Register("policies", func(ctx context.Context) error { ... })
//	health.Register(mux, checker, version, commit, buildTime)
package health
