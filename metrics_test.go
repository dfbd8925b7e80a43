package accounts

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshSuccess)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success = %d, want 2", got)
	}
	if got := m.Value(MetricRefreshSuccess); got != 1 {
		t.Fatalf("refresh success = %d, want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}

	snapshot := m.Snapshot()
	if snapshot.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("snapshot counter = %d, want 2", snapshot.Counters[MetricLoginSuccess])
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("disabled metrics reports Enabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	nilMetrics.Observe(MetricAuthenticateLatency, time.Millisecond)
	if nilMetrics.Enabled() {
		t.Fatal("nil metrics reports Enabled")
	}
	if snap := nilMetrics.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("nil snapshot not empty: %v", snap)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		2 * time.Millisecond,   // bucket 0 (<=5ms)
		8 * time.Millisecond,   // bucket 1 (<=10ms)
		40 * time.Millisecond,  // bucket 3 (<=50ms)
		900 * time.Millisecond, // bucket 7 (+Inf)
	}
	for _, d := range samples {
		m.Observe(MetricAuthenticateLatency, d)
	}

	// Only the authenticate histogram is tracked.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != HistogramBucketCount {
		t.Fatalf("bucket count = %d, want %d", len(buckets), HistogramBucketCount)
	}

	want := []uint64{1, 1, 0, 1, 0, 0, 0, 1}
	for i, count := range want {
		if buckets[i] != count {
			t.Fatalf("bucket %d = %d, want %d (buckets %v)", i, buckets[i], count, buckets)
		}
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricGuardRejected)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricGuardRejected); got != workers*perWorker {
		t.Fatalf("counter = %d, want %d", got, workers*perWorker)
	}
}
