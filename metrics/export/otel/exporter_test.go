package otel

import (
	"context"
	"maps"
	"sync"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goIdentity.MetricsSnapshot{
		Counters:   maps.Clone(f.snapshot.Counters),
		Histograms: make(map[goIdentity.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricExchangeSuccess: 3,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricExchangeLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goidentity-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	got := collect(t, reader)

	success, ok := got["goidentity_exchange_success_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, success.DataPoints, 1)
	assert.Equal(t, int64(3), success.DataPoints[0].Value)

	dropped, ok := got[eventsDroppedName].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), dropped.DataPoints[0].Value)

	buckets, ok := got["goidentity_exchange_latency_seconds_bucket"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, buckets.DataPoints, 8)
	byLE := make(map[string]int64)
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		byLE[le.AsString()] = dp.Value
	}
	assert.Equal(t, int64(1), byLE["0.005"])
	assert.Equal(t, int64(8), byLE["+Inf"])

	count, ok := got["goidentity_exchange_latency_seconds_count"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(8), count.DataPoints[0].Value)
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()

	_, err := NewOTelExporterFromSource(provider.Meter("goidentity-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewOTelExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader, provider := newMeter()
	exp, err := NewOTelExporterFromSource(provider.Meter("goidentity-test"), &fakeSource{})
	require.NoError(t, err)

	require.NoError(t, exp.Close())
	m, ok := collect(t, reader)["goidentity_exchange_success_total"]
	if ok {
		sum, _ := m.Data.(metricdata.Sum[int64])
		assert.Empty(t, sum.DataPoints)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{goIdentity.MetricOTPIssued: 1},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricExchangeLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goidentity-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goIdentity.MetricOTPIssued] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
