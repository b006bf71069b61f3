package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsRecordNothing(t *testing.T) {
	m := New(Config{Enabled: false, EnableLatency: true})
	m.Inc(MetricExchangeSuccess)
	m.Observe(MetricExchangeLatency, time.Millisecond)

	if m.Value(MetricExchangeSuccess) != 0 {
		t.Fatal("expected disabled counter to stay zero")
	}
	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricExchangeSuccess)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricExchangeSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := New(Config{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricJWTIssued)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricJWTIssued); got != 16000 {
		t.Fatalf("expected 16000, got %d", got)
	}
	if got := m.Snapshot().Counters[MetricJWTIssued]; got != 16000 {
		t.Fatalf("expected snapshot 16000, got %d", got)
	}
}

func TestLatencyBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	for _, d := range []time.Duration{
		time.Millisecond, 8 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond,
		90 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, time.Second,
	} {
		m.Observe(MetricExchangeLatency, d)
	}
	m.Observe(MetricExchangeSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricExchangeLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
}
