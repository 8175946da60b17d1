package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}

func TestMetrics_RecordFile(t *testing.T) {
	m := New()

	m.RecordFile(OutcomeAdded)
	m.RecordFile(OutcomeAdded)
	m.RecordFile(OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.syncFiles.WithLabelValues(OutcomeAdded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncFiles.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.syncFiles.WithLabelValues(OutcomeSkipped)))
}

func TestMetrics_ObserveSearch(t *testing.T) {
	// Given: fresh metrics
	m := New()

	// When: a hit, a zero-result search and a failure are recorded
	m.ObserveSearch(5*time.Millisecond, 3, nil)
	m.ObserveSearch(5*time.Millisecond, 0, nil)
	m.ObserveSearch(time.Millisecond, 0, errors.New("boom"))

	// Then: each status is counted once and only successes are timed
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchTotal.WithLabelValues("zero_results")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchTotal.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.searchLatency))
}

func TestMetrics_RecordEmbedded(t *testing.T) {
	m := New()
	m.RecordEmbedded(4)
	m.RecordEmbedded(0)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.embedTexts))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordFile(OutcomeAdded)
		m.RecordEmbedded(3)
		m.ObserveSync(time.Second)
		m.ObserveSearch(time.Second, 1, nil)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	// Given: metrics with one sync recorded
	m := New()
	m.RecordFile(OutcomeUpdated)
	m.ObserveSync(2 * time.Second)
	path := filepath.Join(t.TempDir(), "rustrag.prom")

	// When: exported
	require.NoError(t, m.WriteTextfile(path))

	// Then: the file holds the text exposition format
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rustrag_sync_files_total{outcome="updated"} 1`)
	assert.Contains(t, string(data), "rustrag_sync_duration_seconds_count 1")
}
