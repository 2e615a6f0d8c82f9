package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics contains the Prometheus metrics of the sync engine. It
// implements Recorder.
type CatalogMetrics struct {
	ManifestAttempts *prometheus.CounterVec
	RefreshTotal     *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	Entities         prometheus.Gauge
	TextFetches      *prometheus.CounterVec
	TextCacheHits    prometheus.Counter
	TextCacheMisses  prometheus.Counter
	DailySelections  *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	Operations       *prometheus.CounterVec
	registry         *prometheus.Registry
}

// NewCatalogMetrics creates the collectors and registers them with registry.
func NewCatalogMetrics(registry *prometheus.Registry) (*CatalogMetrics, error) {
	m := &CatalogMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register catalog metrics: %w", err)
	}
	return m, nil
}

func (m *CatalogMetrics) initMetrics() {
	m.ManifestAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quack_manifest_attempts_total",
		Help: "Manifest candidate attempts by outcome.",
	}, []string{"outcome"})

	m.RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quack_catalog_refresh_total",
		Help: "Completed catalog refreshes by outcome.",
	}, []string{"outcome"})

	m.RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quack_catalog_refresh_duration_seconds",
		Help:    "Duration of a full fetch and enrich cycle in seconds.",
		Buckets: prometheus.ExponentialBuckets(refreshBucketStart, refreshBucketFactor, refreshBucketCount),
	})

	m.Entities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quack_catalog_entities",
		Help: "Number of entities in the last published catalog.",
	})

	m.TextFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quack_text_fetch_total",
		Help: "Auxiliary text requests by outcome.",
	}, []string{"outcome"})

	m.TextCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quack_text_cache_hits_total",
		Help: "Auxiliary text lookups served from cache.",
	})

	m.TextCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quack_text_cache_misses_total",
		Help: "Auxiliary text lookups not found in cache.",
	})

	m.DailySelections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quack_daily_selection_total",
		Help: "Daily selector outcomes by reason.",
	}, []string{"reason"})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quack_errors_total",
		Help: "Errors built by component and category.",
	}, []string{"component", "category"})

	m.Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quack_operations_total",
		Help: "Other recorded operations by status.",
	}, []string{"operation", "status"})
}

// RecordOperation implements Recorder.
func (m *CatalogMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpManifestFetch:
		m.ManifestAttempts.WithLabelValues(status).Inc()
	case OpCatalogRefresh:
		m.RefreshTotal.WithLabelValues(status).Inc()
	case OpTextFetch:
		m.TextFetches.WithLabelValues(status).Inc()
	case OpTextCache:
		if status == StatusHit {
			m.TextCacheHits.Inc()
		} else {
			m.TextCacheMisses.Inc()
		}
	case OpDailySelection:
		m.DailySelections.WithLabelValues(status).Inc()
	default:
		m.Operations.WithLabelValues(operation, status).Inc()
	}
}

// RecordDuration implements Recorder. Only catalog refreshes are timed.
func (m *CatalogMetrics) RecordDuration(operation string, seconds float64) {
	if operation == OpCatalogRefresh {
		m.RefreshDuration.Observe(seconds)
	}
}

// RecordError implements Recorder. operation is the reporting component.
func (m *CatalogMetrics) RecordError(operation, errorType string) {
	m.Errors.WithLabelValues(operation, errorType).Inc()
}

// SetCatalogSize updates the entity gauge.
func (m *CatalogMetrics) SetCatalogSize(n int) {
	m.Entities.Set(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *CatalogMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ManifestAttempts.Collect(ch)
	m.RefreshTotal.Collect(ch)
	ch <- m.RefreshDuration
	ch <- m.Entities
	m.TextFetches.Collect(ch)
	ch <- m.TextCacheHits
	ch <- m.TextCacheMisses
	m.DailySelections.Collect(ch)
	m.Errors.Collect(ch)
	m.Operations.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *CatalogMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ManifestAttempts.Describe(ch)
	m.RefreshTotal.Describe(ch)
	ch <- m.RefreshDuration.Desc()
	ch <- m.Entities.Desc()
	m.TextFetches.Describe(ch)
	ch <- m.TextCacheHits.Desc()
	ch <- m.TextCacheMisses.Desc()
	m.DailySelections.Describe(ch)
	m.Errors.Describe(ch)
	m.Operations.Describe(ch)
}
