package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bdl/pkg/config"
)

// PolicyMetrics tracks policy loading, composition and test runs.
type PolicyMetrics struct {
	reloadsTotal      *prometheus.CounterVec
	loadedVersions    prometheus.Gauge
	compositionCache  *prometheus.CounterVec
	compositionErrors *prometheus.CounterVec
	testCasesTotal    *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_reloads_total",
				Help:      "Policy directory loads by result",
			},
			[]string{"result"},
		),
		loadedVersions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_versions_loaded",
				Help:      "Number of policy versions currently served",
			},
		),
		compositionCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "composition_cache_total",
				Help:      "Effective document cache lookups by result",
			},
			[]string{"result"},
		),
		compositionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "composition_errors_total",
				Help:      "Failed compositions by error kind",
			},
			[]string{"kind"},
		),
		testCasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "test_cases_total",
				Help:      "Policy test cases run by policy and result",
			},
			[]string{"policy_id", "result"},
		),
	}

	registry.MustRegister(
		pm.reloadsTotal,
		pm.loadedVersions,
		pm.compositionCache,
		pm.compositionErrors,
		pm.testCasesTotal,
	)
	return pm
}

// RecordReload records a reload. The loaded gauge only moves on success,
// since a failed reload keeps serving the previous set.
func (pm *PolicyMetrics) RecordReload(success bool, versions int) {
	if !success {
		pm.reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	pm.reloadsTotal.WithLabelValues("success").Inc()
	pm.loadedVersions.Set(float64(versions))
}

// RecordCompositionCache records a cache hit or miss.
func (pm *PolicyMetrics) RecordCompositionCache(hit bool) {
	if hit {
		pm.compositionCache.WithLabelValues("hit").Inc()
	} else {
		pm.compositionCache.WithLabelValues("miss").Inc()
	}
}

// RecordCompositionError records a composition failure.
func (pm *PolicyMetrics) RecordCompositionError(kind string) {
	pm.compositionErrors.WithLabelValues(kind).Inc()
}

// RecordTestRun adds a suite run's pass and fail counts.
func (pm *PolicyMetrics) RecordTestRun(policyID string, passed, failed int) {
	pm.testCasesTotal.WithLabelValues(policyID, "passed").Add(float64(passed))
	pm.testCasesTotal.WithLabelValues(policyID, "failed").Add(float64(failed))
}
