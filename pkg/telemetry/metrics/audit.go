package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bdl/pkg/config"
)

// AuditMetrics tracks trace persistence.
type AuditMetrics struct {
	writesTotal *prometheus.CounterVec
	prunedTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "trace_writes_total",
				Help:      "Trace store writes by result",
			},
			[]string{"result"},
		),
		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "traces_pruned_total",
				Help:      "Traces deleted by retention",
			},
		),
	}
	registry.MustRegister(am.writesTotal, am.prunedTotal)
	return am
}

// RecordWrite records one trace write.
func (am *AuditMetrics) RecordWrite(success bool) {
	if success {
		am.writesTotal.WithLabelValues("success").Inc()
	} else {
		am.writesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordPruned adds n pruned traces.
func (am *AuditMetrics) RecordPruned(n int64) {
	if n > 0 {
		am.prunedTotal.Add(float64(n))
	}
}
