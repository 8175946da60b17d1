// Package telemetry records sync and search metrics with Prometheus.
// Metrics stay local: they live in a private registry and can be written
// to a node_exporter textfile.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rustrag"

// Sync file outcomes.
const (
	OutcomeAdded   = "added"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// LatencyBucket is a coarse latency class used in log attributes.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// Metrics holds the collectors for one process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	syncFiles     *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	searchTotal   *prometheus.CounterVec
	searchLatency prometheus.Histogram
	searchResults prometheus.Histogram
	embedTexts    prometheus.Counter
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_files_total",
				Help:      "Files seen by directory syncs, by outcome",
			},
			[]string{"outcome"},
		),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Directory sync duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		searchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Search queries, by status",
			},
			[]string{"status"},
		),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		embedTexts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedded_texts_total",
			Help:      "Texts sent to the embedder during syncs",
		}),
	}
	m.registry.MustRegister(
		m.syncFiles,
		m.syncDuration,
		m.searchTotal,
		m.searchLatency,
		m.searchResults,
		m.embedTexts,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordFile counts one file with the given sync outcome.
func (m *Metrics) RecordFile(outcome string) {
	if m == nil {
		return
	}
	m.syncFiles.WithLabelValues(outcome).Inc()
}

// RecordEmbedded counts texts handed to the embedder.
func (m *Metrics) RecordEmbedded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.embedTexts.Add(float64(n))
}

// ObserveSync records the duration of a completed directory sync.
func (m *Metrics) ObserveSync(d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(d.Seconds())
}

// ObserveSearch records one search. Failed searches only bump the error
// counter.
func (m *Metrics) ObserveSearch(d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.searchTotal.WithLabelValues("error").Inc()
		return
	}
	status := "ok"
	if results == 0 {
		status = "zero_results"
	}
	m.searchTotal.WithLabelValues(status).Inc()
	m.searchLatency.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
