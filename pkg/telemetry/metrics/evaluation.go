package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bdl/pkg/config"
)

// EvaluationMetrics tracks engine evaluations.
//
// Metrics:
//   - bdl_engine_evaluations_total{policy_id,version,verdict}
//   - bdl_engine_evaluation_duration_seconds{policy_id}
//   - bdl_engine_statements_total{type,status}
//   - bdl_engine_param_errors_total{kind}
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	statementsTotal    *prometheus.CounterVec
	paramErrorsTotal   *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of case evaluations by policy version and verdict",
			},
			[]string{"policy_id", "version", "verdict"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of case evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"policy_id"},
		),
		statementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "statements_total",
				Help:      "Statement outcomes by statement type and status",
			},
			[]string{"type", "status"},
		),
		paramErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "param_errors_total",
				Help:      "Params that failed to bind, by error kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.statementsTotal,
		em.paramErrorsTotal,
	)
	return em
}

// RecordEvaluation records one evaluation.
func (em *EvaluationMetrics) RecordEvaluation(policyID, version, verdict string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(policyID, version, verdict).Inc()
	em.evaluationDuration.WithLabelValues(policyID).Observe(duration.Seconds())
}

// RecordStatement records one statement outcome.
func (em *EvaluationMetrics) RecordStatement(statementType, status string) {
	em.statementsTotal.WithLabelValues(statementType, status).Inc()
}

// RecordParamError records one param binding error.
func (em *EvaluationMetrics) RecordParamError(kind string) {
	em.paramErrorsTotal.WithLabelValues(kind).Inc()
}
