// concurrency/metrics.go
package concurrency

import (
	"sync"
	"time"
)

// ConcurrencyMetrics captures token usage for one batch of load requests.
type ConcurrencyMetrics struct {
	TotalRequests  int64         // Total number of tokens handed out
	PermitWaitTime time.Duration // Total time spent waiting for tokens
	InFlight       int64         // Tokens currently held
	PeakInFlight   int64         // Highest InFlight value observed
	Lock           sync.Mutex    // Lock for all fields
}

// MetricsSnapshot is a point-in-time copy of ConcurrencyMetrics.
type MetricsSnapshot struct {
	TotalRequests  int64
	PermitWaitTime time.Duration
	InFlight       int64
	PeakInFlight   int64
}

// Snapshot returns a consistent copy of the metrics.
func (m *ConcurrencyMetrics) Snapshot() MetricsSnapshot {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	return MetricsSnapshot{
		TotalRequests:  m.TotalRequests,
		PermitWaitTime: m.PermitWaitTime,
		InFlight:       m.InFlight,
		PeakInFlight:   m.PeakInFlight,
	}
}

// AverageWait returns the mean time a request waited for its token.
func (s MetricsSnapshot) AverageWait() time.Duration {
	if s.TotalRequests == 0 {
		return 0
	}
	return s.PermitWaitTime / time.Duration(s.TotalRequests)
}

func (m *ConcurrencyMetrics) recordAcquire(wait time.Duration) int64 {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	m.TotalRequests++
	m.PermitWaitTime += wait
	m.InFlight++
	if m.InFlight > m.PeakInFlight {
		m.PeakInFlight = m.InFlight
	}
	return m.InFlight
}

func (m *ConcurrencyMetrics) recordRelease() int64 {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	m.InFlight--
	return m.InFlight
}
