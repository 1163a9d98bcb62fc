package domain

import (
	"sync/atomic"
	"time"
)

// ExecutorMetrics holds the atomic counters the spout executor loop and
// collector update on the hot path, matching spec.md's published metric set:
// per-executor {emittedCount, emptyEmitStreak, ack_latency_sampled}.
type ExecutorMetrics struct {
	EmittedCount    atomic.Uint64
	EmptyEmitStreak atomic.Uint64
	SkippedInactive atomic.Uint64

	AckedCount       atomic.Uint64
	FailedCount      atomic.Uint64
	TimedOutCount    atomic.Uint64
	AckLatencyNsSum  atomic.Uint64
	AckLatencySample atomic.Uint64

	StartTime time.Time
}

// NewExecutorMetrics creates a zeroed metrics instance stamped with the
// current time for rate calculations.
func NewExecutorMetrics() *ExecutorMetrics {
	return &ExecutorMetrics{StartTime: time.Now()}
}

// RecordAckLatency folds one ack-latency sample into the running average.
func (m *ExecutorMetrics) RecordAckLatency(d time.Duration) {
	m.AckLatencyNsSum.Add(uint64(d.Nanoseconds()))
	m.AckLatencySample.Add(1)
}

// AverageAckLatencyMs returns the mean ack latency observed so far, in
// milliseconds.
func (m *ExecutorMetrics) AverageAckLatencyMs() float64 {
	samples := m.AckLatencySample.Load()
	if samples == 0 {
		return 0
	}
	return float64(m.AckLatencyNsSum.Load()) / float64(samples) / 1_000_000
}

// QueueMetricsSnapshot is the per-queue metric set published alongside the
// executor counters: capacity, population, fullness, rolling arrival rate
// and the derived sojourn-time estimate.
type QueueMetricsSnapshot struct {
	Capacity        int     `json:"capacity"`
	Population      int     `json:"population"`
	PctFull         float64 `json:"pct_full"`
	ArrivalRateSecs float64 `json:"arrival_rate_secs"`
	SojournTimeMs   float64 `json:"sojourn_time_ms"`
	InsertFailures  uint64  `json:"insert_failures"`
}

// ExecutorMetricsSnapshot is a point-in-time view suitable for publishing on
// METRICS_TICK.
type ExecutorMetricsSnapshot struct {
	Timestamp         time.Time
	EmittedCount      uint64
	EmptyEmitStreak   uint64
	SkippedInactive   uint64
	AckedCount        uint64
	FailedCount       uint64
	TimedOutCount     uint64
	AverageAckLatency float64

	// RecvQueue carries the executor's receive-queue flow-control state,
	// filled in by the loop at snapshot time.
	RecvQueue QueueMetricsSnapshot
}

// Snapshot takes a point-in-time copy of the metrics.
func (m *ExecutorMetrics) Snapshot() ExecutorMetricsSnapshot {
	return ExecutorMetricsSnapshot{
		Timestamp:         time.Now(),
		EmittedCount:      m.EmittedCount.Load(),
		EmptyEmitStreak:   m.EmptyEmitStreak.Load(),
		SkippedInactive:   m.SkippedInactive.Load(),
		AckedCount:        m.AckedCount.Load(),
		FailedCount:       m.FailedCount.Load(),
		TimedOutCount:     m.TimedOutCount.Load(),
		AverageAckLatency: m.AverageAckLatencyMs(),
	}
}
