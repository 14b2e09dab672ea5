package businessflow

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBucketBoundsMs are the histogram upper bounds, in milliseconds, used
// for the p99 estimate. They mirror pricing_calculation_duration_seconds so
// the in-process snapshot and the scraped histogram always agree.
var latencyBucketBoundsMs = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

var (
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_calculations_total",
			Help: "Total number of pricing calculations by result",
		},
		[]string{"result"},
	)

	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_cache_events_total",
			Help: "Total number of calculation cache events",
		},
		[]string{"event"},
	)

	calculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_calculation_duration_seconds",
			Help:    "Pricing calculation duration in seconds",
			Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// EngineMetrics holds the engine's operational counters. Counters are
// monotonic since process start and safe under full concurrency; reads on the
// calculation path are lock free.
//
// Every served calculation increments TotalCalculations, cache hits included.
// A hit is a served price, it only skips the pipeline. Failed calculations
// increment CalculationErrors instead.
type EngineMetrics struct {
	startedAt time.Time

	totalCalculations atomic.Uint64
	cacheHits         atomic.Uint64
	cacheMisses       atomic.Uint64
	cacheBypasses     atomic.Uint64
	calculationErrors atomic.Uint64

	latencySumMicros atomic.Uint64
	latencyBuckets   []atomic.Uint64
}

// MetricsSnapshot is a point-in-time read of the engine counters.
type MetricsSnapshot struct {
	TotalCalculations        uint64    `json:"total_calculations"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheBypasses            uint64    `json:"cache_bypasses"`
	CalculationErrors        uint64    `json:"calculation_errors"`
	AverageCalculationTimeMs float64   `json:"average_calculation_time_ms"`
	P99CalculationTimeMs     float64   `json:"p99_calculation_time_ms"`
	StartedAt                time.Time `json:"started_at"`
}

// NewEngineMetrics creates a zeroed metrics holder
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		startedAt:      time.Now().UTC(),
		latencyBuckets: make([]atomic.Uint64, len(latencyBucketBoundsMs)+1),
	}
}

// RecordCalculation counts one served calculation and its latency
func (m *EngineMetrics) RecordCalculation(durationMs float64, cached bool) {
	m.totalCalculations.Add(1)
	if cached {
		m.cacheHits.Add(1)
		calculationsTotal.WithLabelValues("hit").Inc()
		cacheEventsTotal.WithLabelValues("hit").Inc()
	} else {
		m.cacheMisses.Add(1)
		calculationsTotal.WithLabelValues("computed").Inc()
		cacheEventsTotal.WithLabelValues("miss").Inc()
	}

	if durationMs < 0 {
		durationMs = 0
	}
	m.latencySumMicros.Add(uint64(durationMs * 1000))
	m.latencyBuckets[bucketIndex(durationMs)].Add(1)
	calculationDuration.Observe(durationMs / 1000)
}

// RecordError counts one failed calculation
func (m *EngineMetrics) RecordError() {
	m.calculationErrors.Add(1)
	calculationsTotal.WithLabelValues("error").Inc()
}

// RecordCacheBypass counts one cache failure that degraded to a fresh compute
func (m *EngineMetrics) RecordCacheBypass() {
	m.cacheBypasses.Add(1)
	cacheEventsTotal.WithLabelValues("bypass").Inc()
}

// Snapshot reads the current counter values. Counters are read individually,
// a snapshot taken under concurrent traffic may straddle updates.
func (m *EngineMetrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TotalCalculations: m.totalCalculations.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		CacheBypasses:     m.cacheBypasses.Load(),
		CalculationErrors: m.calculationErrors.Load(),
		StartedAt:         m.startedAt,
	}

	counts := make([]uint64, len(m.latencyBuckets))
	var total uint64
	for i := range m.latencyBuckets {
		counts[i] = m.latencyBuckets[i].Load()
		total += counts[i]
	}
	if total > 0 {
		snap.AverageCalculationTimeMs = float64(m.latencySumMicros.Load()) / 1000 / float64(total)
		snap.P99CalculationTimeMs = percentileFromBuckets(counts, total, 0.99)
	}
	return snap
}

func bucketIndex(durationMs float64) int {
	for i, bound := range latencyBucketBoundsMs {
		if durationMs <= bound {
			return i
		}
	}
	return len(latencyBucketBoundsMs)
}

// percentileFromBuckets estimates a percentile by linear interpolation inside
// the bucket holding the target rank. Observations in the overflow bucket
// report the largest finite bound.
func percentileFromBuckets(counts []uint64, total uint64, quantile float64) float64 {
	rank := quantile * float64(total)
	var cumulative float64
	for i, count := range counts {
		prev := cumulative
		cumulative += float64(count)
		if cumulative < rank || count == 0 {
			continue
		}

		if i >= len(latencyBucketBoundsMs) {
			return latencyBucketBoundsMs[len(latencyBucketBoundsMs)-1]
		}
		lower := 0.0
		if i > 0 {
			lower = latencyBucketBoundsMs[i-1]
		}
		upper := latencyBucketBoundsMs[i]
		return lower + (upper-lower)*((rank-prev)/float64(count))
	}
	return 0
}
