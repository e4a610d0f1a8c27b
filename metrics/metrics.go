// Package metrics provides Prometheus metrics for the columnar index
// ingestion pipeline.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics. A nil *Metrics is valid and records
// nothing, so callers never guard their recording calls.
type Metrics struct {
	FilesAbsorbed          *prometheus.CounterVec
	FilesSkipped           *prometheus.CounterVec
	ThrottleWaits          prometheus.Counter
	MissingBatchManifests  prometheus.Counter
	DeltaFiles             *prometheus.GaugeVec
	CatalogFiles           prometheus.Gauge
	AddDuration            prometheus.Histogram

	registry *prometheus.Registry
	enabled  bool
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // e.g., ":9090"
}

// ApplyDefaults sets default values for metrics config.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = ":9090"
	}
}

// New creates a metrics instance. Disabled config returns an instance
// whose recorders are nil-safe no-ops.
func New(cfg Config) *Metrics {
	cfg.ApplyDefaults()

	m := &Metrics{
		enabled:  cfg.Enabled,
		registry: prometheus.NewRegistry(),
	}
	if !cfg.Enabled {
		return m
	}

	m.FilesAbsorbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccingest",
			Name:      "files_absorbed_total",
			Help:      "Source files registered with a destination table",
		},
		[]string{"table"},
	)
	m.FilesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccingest",
			Name:      "files_skipped_total",
			Help:      "Source files skipped after a non-retryable add failure",
		},
		[]string{"table"},
	)
	m.ThrottleWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ccingest",
			Name:      "throttle_waits_total",
			Help:      "Backoff waits taken after remote throttling",
		},
	)
	m.MissingBatchManifests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ccingest",
			Name:      "missing_batch_manifests_total",
			Help:      "Crawl batches skipped because their paths manifest is absent",
		},
	)
	m.DeltaFiles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ccingest",
			Name:      "delta_files",
			Help:      "Files in the current run's ingestion delta, per table",
		},
		[]string{"table"},
	)
	m.CatalogFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ccingest",
			Name:      "catalog_files",
			Help:      "Total source files enumerated this run",
		},
	)
	m.AddDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ccingest",
			Name:      "add_file_duration_seconds",
			Help:      "Duration of successful add-file operations",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	m.registry.MustRegister(
		m.FilesAbsorbed,
		m.FilesSkipped,
		m.ThrottleWaits,
		m.MissingBatchManifests,
		m.DeltaFiles,
		m.CatalogFiles,
		m.AddDuration,
	)
	return m
}

// Serve starts the /metrics endpoint in a background goroutine. No-op when
// metrics are disabled.
func (m *Metrics) Serve(address string) {
	if m == nil || !m.enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	go func() {
		log.Printf("[metrics] Serving Prometheus metrics on %s", address)
		if err := http.ListenAndServe(address, mux); err != nil {
			log.Printf("[metrics] Metrics server stopped: %v", err)
		}
	}()
}

// RecordAbsorbed increments the absorbed counter for a table.
func (m *Metrics) RecordAbsorbed(table string) {
	if m == nil || !m.enabled {
		return
	}
	m.FilesAbsorbed.WithLabelValues(table).Inc()
}

// RecordSkipped increments the skipped counter for a table.
func (m *Metrics) RecordSkipped(table string) {
	if m == nil || !m.enabled {
		return
	}
	m.FilesSkipped.WithLabelValues(table).Inc()
}

// RecordThrottleWait counts one backoff wait.
func (m *Metrics) RecordThrottleWait() {
	if m == nil || !m.enabled {
		return
	}
	m.ThrottleWaits.Inc()
}

// RecordMissingManifest counts one skipped crawl batch.
func (m *Metrics) RecordMissingManifest() {
	if m == nil || !m.enabled {
		return
	}
	m.MissingBatchManifests.Inc()
}

// SetDeltaSize records the delta size for a table.
func (m *Metrics) SetDeltaSize(table string, n int) {
	if m == nil || !m.enabled {
		return
	}
	m.DeltaFiles.WithLabelValues(table).Set(float64(n))
}

// SetCatalogSize records the total catalog size.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil || !m.enabled {
		return
	}
	m.CatalogFiles.Set(float64(n))
}

// ObserveAddDuration records one successful add-file duration in seconds.
func (m *Metrics) ObserveAddDuration(seconds float64) {
	if m == nil || !m.enabled {
		return
	}
	m.AddDuration.Observe(seconds)
}
