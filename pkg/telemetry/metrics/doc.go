// Package metrics exposes Prometheus metrics for policy evaluation.
//
// A Collector owns its own registry and satisfies the observer interfaces
// of the engine (evaluations, statement outcomes, param errors), the
// composer (cache lookups, composition errors), the policy manager
// (reloads), the test runner and the audit recorder (trace writes). Policy
// ids are unbounded label values, so a CardinalityLimiter folds anything
// past MaxCardinality into the "other" label.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng.WithRecorder(collector)
//	http.Handle("/metrics", collector.Handler())
package metrics
