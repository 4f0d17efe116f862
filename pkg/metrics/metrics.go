// Package metrics exposes Prometheus instrumentation for the enrichment
// and scoring pipeline. A process-wide Manager owns the collectors;
// package-level helpers record against it so call sites stay terse.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns the collectors registered on one registry.
type Manager struct {
	namespace string
	buckets   []float64
	enabled   bool
	registry  prometheus.Registerer

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge

	sourceSuccess *prometheus.CounterVec
	sourceFailure *prometheus.CounterVec

	enrichDuration prometheus.Histogram
	scoringLatency prometheus.Histogram
	gradeTotal     *prometheus.CounterVec

	benchmarkScored  prometheus.Counter
	benchmarkSkipped prometheus.Counter

	httpRequests *prometheus.CounterVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithHistogramBuckets overrides the latency histogram buckets (ms).
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithEnabled toggles recording; a disabled manager is a no-op.
func WithEnabled(enabled bool) Option {
	return func(m *Manager) { m.enabled = enabled }
}

// WithRegistry registers collectors on a custom registry, used by tests
// to avoid cross-test collisions.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

var (
	globalManager  *Manager                           //nolint:gochecknoglobals // process-wide metrics sink
	customRegistry = prometheus.NewRegistry()         //nolint:gochecknoglobals // serves the /metrics endpoint
)

func init() { //nolint:gochecknoinits // wire default manager at startup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "torp",
		buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		enabled:   true,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.build()
	return m
}

func (m *Manager) build() {
	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help}
	}

	m.cacheHits = prometheus.NewCounter(factory("cache_hits_total", "Cache lookups served from memory."))
	m.cacheMisses = prometheus.NewCounter(factory("cache_misses_total", "Cache lookups that fell through to a source."))
	m.cacheEvictions = prometheus.NewCounter(factory("cache_evictions_total", "Expired entries removed from the cache."))
	m.cacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "cache_entries", Help: "Current number of cache entries.",
	})

	m.sourceSuccess = prometheus.NewCounterVec(factory("source_success_total", "Successful source fetches."), []string{"source"})
	m.sourceFailure = prometheus.NewCounterVec(factory("source_failure_total", "Failed or timed-out source fetches."), []string{"source"})

	m.enrichDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "enrichment_duration_ms", Help: "End-to-end enrichment duration.", Buckets: m.buckets,
	})
	m.scoringLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "scoring_duration_ms", Help: "Score computation duration.", Buckets: m.buckets,
	})
	m.gradeTotal = prometheus.NewCounterVec(factory("grade_total", "Scores produced by grade."), []string{"grade"})

	m.benchmarkScored = prometheus.NewCounter(factory("benchmark_scored_total", "Benchmark samples scored."))
	m.benchmarkSkipped = prometheus.NewCounter(factory("benchmark_skipped_total", "Benchmark samples skipped on error."))

	m.httpRequests = prometheus.NewCounterVec(factory("http_requests_total", "HTTP requests by endpoint and status."), []string{"endpoint", "method", "status"})

	m.registry.MustRegister(
		m.cacheHits, m.cacheMisses, m.cacheEvictions, m.cacheSize,
		m.sourceSuccess, m.sourceFailure,
		m.enrichDuration, m.scoringLatency, m.gradeTotal,
		m.benchmarkScored, m.benchmarkSkipped,
		m.httpRequests,
	)
}

// Package-level helpers recording against the global manager.

func RecordCacheHit() {
	if globalManager.enabled {
		globalManager.cacheHits.Inc()
	}
}

func RecordCacheMiss() {
	if globalManager.enabled {
		globalManager.cacheMisses.Inc()
	}
}

func RecordCacheEviction() {
	if globalManager.enabled {
		globalManager.cacheEvictions.Inc()
	}
}

func UpdateCacheSize(n int) {
	if globalManager.enabled {
		globalManager.cacheSize.Set(float64(n))
	}
}

func RecordSourceSuccess(name string) {
	if globalManager.enabled {
		globalManager.sourceSuccess.WithLabelValues(name).Inc()
	}
}

func RecordSourceFailure(name string) {
	if globalManager.enabled {
		globalManager.sourceFailure.WithLabelValues(name).Inc()
	}
}

func RecordEnrichmentDuration(ms float64) {
	if globalManager.enabled {
		globalManager.enrichDuration.Observe(ms)
	}
}

func RecordScoringLatency(ms float64) {
	if globalManager.enabled {
		globalManager.scoringLatency.Observe(ms)
	}
}

func RecordGrade(grade string) {
	if globalManager.enabled {
		globalManager.gradeTotal.WithLabelValues(grade).Inc()
	}
}

func RecordBenchmarkRun(scored, skipped int) {
	if globalManager.enabled {
		globalManager.benchmarkScored.Add(float64(scored))
		globalManager.benchmarkSkipped.Add(float64(skipped))
	}
}

func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

// GetRegistry returns the registry backing the /metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
