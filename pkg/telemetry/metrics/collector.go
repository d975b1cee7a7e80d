package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bdl/pkg/config"
)

// OtherLabel replaces label values once the cardinality limit is reached.
const OtherLabel = "other"

// Collector owns the Prometheus registry and every metric the decision
// engine records. It implements the observer interfaces of the engine,
// composer, policy manager, test runner and audit recorder, so a single
// Collector is handed to each of them.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	policyMetrics     *PolicyMetrics
	auditMetrics      *AuditMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registered on registry, or on a fresh
// registry when registry is nil.
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "bdl", Subsystem: "engine"}
//	collector := metrics.NewCollector(cfg, nil)
//	eng.WithRecorder(collector)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "bdl"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Evaluations are in-memory tree walks: 10µs to ~80ms.
		cfg.DurationBuckets = prometheus.ExponentialBuckets(0.00001, 2, 14)
	}
	if cfg.MaxCardinality <= 0 {
		cfg.MaxCardinality = 1000
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		evaluationMetrics:  NewEvaluationMetrics(cfg, registry),
		policyMetrics:      NewPolicyMetrics(cfg, registry),
		auditMetrics:       NewAuditMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxCardinality),
	}
}

// RecordEvaluation records a completed evaluation. Unknown policy versions
// beyond the cardinality limit are folded into OtherLabel.
func (c *Collector) RecordEvaluation(policyID, version, verdict string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(policyID + "@" + version) {
		policyID, version = OtherLabel, OtherLabel
	}
	c.evaluationMetrics.RecordEvaluation(policyID, version, verdict, duration)
}

// RecordStatement records one statement outcome.
func (c *Collector) RecordStatement(statementType, status string) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordStatement(statementType, status)
}

// RecordParamError records a param that failed to bind.
func (c *Collector) RecordParamError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordParamError(kind)
}

// RecordCompositionCache records an effective-document cache lookup.
func (c *Collector) RecordCompositionCache(hit bool) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordCompositionCache(hit)
}

// RecordCompositionError records a failed composition by error kind.
func (c *Collector) RecordCompositionError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordCompositionError(kind)
}

// RecordPolicyReload records a load or reload of the policy directory.
func (c *Collector) RecordPolicyReload(success bool, versions int) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordReload(success, versions)
}

// RecordTestRun records the outcome of a test suite run.
func (c *Collector) RecordTestRun(policyID string, passed, failed int) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(policyID) {
		policyID = OtherLabel
	}
	c.policyMetrics.RecordTestRun(policyID, passed, failed)
}

// RecordTraceWrite records a trace persistence attempt.
func (c *Collector) RecordTraceWrite(success bool) {
	if !c.config.Enabled {
		return
	}
	c.auditMetrics.RecordWrite(success)
}

// RecordTracesPruned records traces removed by retention.
func (c *Collector) RecordTracesPruned(n int64) {
	if !c.config.Enabled {
		return
	}
	c.auditMetrics.RecordPruned(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct label sets a collector
// tracks for unbounded labels such as policy ids.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or fits under the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	_, exists := cl.current[labelSet]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
