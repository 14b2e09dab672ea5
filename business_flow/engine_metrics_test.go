package businessflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineMetricsZeroState(t *testing.T) {
	metrics := NewEngineMetrics()

	snap := metrics.Snapshot()
	assert.Zero(t, snap.TotalCalculations)
	assert.Zero(t, snap.CacheHits)
	assert.Zero(t, snap.CacheMisses)
	assert.Zero(t, snap.CacheBypasses)
	assert.Zero(t, snap.CalculationErrors)
	assert.Zero(t, snap.AverageCalculationTimeMs)
	assert.Zero(t, snap.P99CalculationTimeMs)
	assert.WithinDuration(t, time.Now().UTC(), snap.StartedAt, time.Minute)
}

func TestEngineMetricsCounters(t *testing.T) {
	metrics := NewEngineMetrics()

	metrics.RecordCalculation(10, false)
	metrics.RecordCalculation(2, true)
	metrics.RecordCalculation(5, false)
	metrics.RecordError()
	metrics.RecordCacheBypass()
	metrics.RecordCacheBypass()

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(3), snap.TotalCalculations)
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
	assert.Equal(t, uint64(2), snap.CacheBypasses)
	assert.Equal(t, uint64(1), snap.CalculationErrors)
	assert.InDelta(t, 17.0/3.0, snap.AverageCalculationTimeMs, 1e-9)
}

func TestEngineMetricsP99(t *testing.T) {
	t.Run("InterpolatesInsideTheTargetBucket", func(t *testing.T) {
		metrics := NewEngineMetrics()

		// 100 observations in the (2, 5] bucket; rank 99 of 100 lands at
		// 2 + 3*0.99
		for i := 0; i < 100; i++ {
			metrics.RecordCalculation(3, false)
		}

		snap := metrics.Snapshot()
		assert.InDelta(t, 3.0, snap.AverageCalculationTimeMs, 1e-9)
		assert.InDelta(t, 4.97, snap.P99CalculationTimeMs, 1e-9)
	})

	t.Run("SingleOutlierStaysBeyondP99", func(t *testing.T) {
		metrics := NewEngineMetrics()

		for i := 0; i < 99; i++ {
			metrics.RecordCalculation(1, false)
		}
		metrics.RecordCalculation(600, false)

		snap := metrics.Snapshot()
		assert.InDelta(t, 1.0, snap.P99CalculationTimeMs, 1e-9)
	})

	t.Run("RankInsideTheOutlierBucket", func(t *testing.T) {
		metrics := NewEngineMetrics()

		for i := 0; i < 98; i++ {
			metrics.RecordCalculation(1, false)
		}
		metrics.RecordCalculation(600, false)
		metrics.RecordCalculation(600, false)

		// Rank 99 is the first of the two observations in (500, 1000]
		snap := metrics.Snapshot()
		assert.InDelta(t, 750.0, snap.P99CalculationTimeMs, 1e-9)
	})

	t.Run("OverflowReportsTheLargestFiniteBound", func(t *testing.T) {
		metrics := NewEngineMetrics()

		metrics.RecordCalculation(5000, false)

		snap := metrics.Snapshot()
		assert.InDelta(t, 5000.0, snap.AverageCalculationTimeMs, 1e-9)
		assert.InDelta(t, 1000.0, snap.P99CalculationTimeMs, 1e-9)
	})

	t.Run("NegativeDurationCountsAsZero", func(t *testing.T) {
		metrics := NewEngineMetrics()

		metrics.RecordCalculation(-5, false)

		snap := metrics.Snapshot()
		assert.Equal(t, uint64(1), snap.TotalCalculations)
		assert.Zero(t, snap.AverageCalculationTimeMs)
		assert.LessOrEqual(t, snap.P99CalculationTimeMs, 1.0)
	})
}

func TestEngineMetricsConcurrentRecording(t *testing.T) {
	metrics := NewEngineMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				metrics.RecordCalculation(10, j%2 == 0)
				metrics.RecordError()
				metrics.RecordCacheBypass()
			}
		}()
	}
	wg.Wait()

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(800), snap.TotalCalculations)
	assert.Equal(t, uint64(400), snap.CacheHits)
	assert.Equal(t, uint64(400), snap.CacheMisses)
	assert.Equal(t, uint64(800), snap.CacheBypasses)
	assert.Equal(t, uint64(800), snap.CalculationErrors)
	assert.InDelta(t, 10.0, snap.AverageCalculationTimeMs, 1e-9)
}
