package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersSubmitted atomic.Uint64
	ordersRejected  atomic.Uint64
	ordersCanceled  atomic.Uint64
	tradesExecuted  atomic.Uint64
	quoteFetches    atomic.Uint64
	quoteErrors     atomic.Uint64

	// Latency tracking
	matchLatencySumNs atomic.Int64
	matchLatencyCount atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordSubmit records an accepted order with its matching latency and the
// number of trades it produced.
func (m *Metrics) RecordSubmit(latencyNs int64, trades int) {
	m.ordersSubmitted.Add(1)
	m.tradesExecuted.Add(uint64(trades))
	m.matchLatencySumNs.Add(latencyNs)
	m.matchLatencyCount.Add(1)
}

// RecordReject records an order refused at validation.
func (m *Metrics) RecordReject() {
	m.ordersRejected.Add(1)
}

// RecordCancel records a successful cancellation.
func (m *Metrics) RecordCancel() {
	m.ordersCanceled.Add(1)
}

// RecordQuoteFetch records a successful provider fetch.
func (m *Metrics) RecordQuoteFetch() {
	m.quoteFetches.Add(1)
}

// RecordQuoteError records a failed provider fetch.
func (m *Metrics) RecordQuoteError() {
	m.quoteErrors.Add(1)
}

// IncrementStreams increments the live WebSocket stream gauge by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements the live WebSocket stream gauge by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersSubmitted   uint64    `json:"orders_submitted"`
	OrdersRejected    uint64    `json:"orders_rejected"`
	OrdersCanceled    uint64    `json:"orders_canceled"`
	TradesExecuted    uint64    `json:"trades_executed"`
	QuoteFetches      uint64    `json:"quote_fetches"`
	QuoteErrors       uint64    `json:"quote_errors"`
	AvgMatchLatencyNs int64     `json:"avg_match_latency_ns"`
	ActiveStreams     int32     `json:"active_streams"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.matchLatencyCount.Load()
	if count > 0 {
		avgLatency = m.matchLatencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersSubmitted:   m.ordersSubmitted.Load(),
		OrdersRejected:    m.ordersRejected.Load(),
		OrdersCanceled:    m.ordersCanceled.Load(),
		TradesExecuted:    m.tradesExecuted.Load(),
		QuoteFetches:      m.quoteFetches.Load(),
		QuoteErrors:       m.quoteErrors.Load(),
		AvgMatchLatencyNs: avgLatency,
		ActiveStreams:     m.activeStreams.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersSubmitted.Store(0)
	m.ordersRejected.Store(0)
	m.ordersCanceled.Store(0)
	m.tradesExecuted.Store(0)
	m.quoteFetches.Store(0)
	m.quoteErrors.Store(0)
	m.matchLatencySumNs.Store(0)
	m.matchLatencyCount.Store(0)
	m.activeStreams.Store(0)
}
