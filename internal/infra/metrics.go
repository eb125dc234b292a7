package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// REST counters
	restRequests atomic.Uint64
	restRetries  atomic.Uint64
	restFailures atomic.Uint64

	// Streaming counters
	framesReceived atomic.Uint64
	feedConnects   atomic.Uint64

	// Valuation counters
	valuationPasses atomic.Uint64
	balancesSkipped atomic.Uint64

	// Gauges
	feedOpen atomic.Int32 // 1 = open, 0 = not open
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordRequest records a completed REST request attempt.
func (m *Metrics) RecordRequest() {
	m.restRequests.Add(1)
}

// RecordRetry records a retried REST attempt.
func (m *Metrics) RecordRetry() {
	m.restRetries.Add(1)
}

// RecordFailure records a REST call that exhausted its attempts.
func (m *Metrics) RecordFailure() {
	m.restFailures.Add(1)
}

// RecordFrame records one frame delivered by the streaming feed.
func (m *Metrics) RecordFrame() {
	m.framesReceived.Add(1)
}

// RecordFeedConnect records an established streaming connection.
func (m *Metrics) RecordFeedConnect() {
	m.feedConnects.Add(1)
}

// RecordValuationPass records a completed portfolio valuation.
func (m *Metrics) RecordValuationPass() {
	m.valuationPasses.Add(1)
}

// RecordBalanceSkipped records a balance that could not be priced.
func (m *Metrics) RecordBalanceSkipped() {
	m.balancesSkipped.Add(1)
}

// SetFeedOpen sets the streaming connection gauge.
func (m *Metrics) SetFeedOpen(open bool) {
	if open {
		m.feedOpen.Store(1)
	} else {
		m.feedOpen.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	RestRequests    uint64
	RestRetries     uint64
	RestFailures    uint64
	FramesReceived  uint64
	FeedConnects    uint64
	ValuationPasses uint64
	BalancesSkipped uint64
	FeedOpen        bool
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RestRequests:    m.restRequests.Load(),
		RestRetries:     m.restRetries.Load(),
		RestFailures:    m.restFailures.Load(),
		FramesReceived:  m.framesReceived.Load(),
		FeedConnects:    m.feedConnects.Load(),
		ValuationPasses: m.valuationPasses.Load(),
		BalancesSkipped: m.balancesSkipped.Load(),
		FeedOpen:        m.feedOpen.Load() == 1,
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.restRequests.Store(0)
	m.restRetries.Store(0)
	m.restFailures.Store(0)
	m.framesReceived.Store(0)
	m.feedConnects.Store(0)
	m.valuationPasses.Store(0)
	m.balancesSkipped.Store(0)
	m.feedOpen.Store(0)
}
