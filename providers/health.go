package providers

import (
	"sync"
	"time"
)

// HealthTracker maintains the EMA-smoothed response-time and error-rate
// statistics that feed the scoring algorithm. One tracker exists per (chain, provider_name) pair in the
// process-wide map the Manager owns.
type HealthTracker struct {
	mu sync.Mutex

	avgResponseTime     time.Duration
	errorRate           float64 // EMA, 0..1
	consecutiveFailures int
	healthy             bool
	initialized         bool
}

// NewHealthTracker returns a tracker that starts out healthy with no
// history.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{healthy: true}
}

// Record folds one call's outcome into the EMAs:
//
//	avg_rt     <- 0.8*prev + 0.2*observed
//	error_rate <- 0.9*prev + 0.1*(success?0:1)
//
// consecutive_failures resets to 0 on success, increments on failure.
func (h *HealthTracker) Record(success bool, responseTime time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		h.avgResponseTime = responseTime
		h.initialized = true
	} else {
		h.avgResponseTime = time.Duration(0.8*float64(h.avgResponseTime) + 0.2*float64(responseTime))
	}

	outcome := 0.0
	if !success {
		outcome = 1.0
	}
	h.errorRate = 0.9*h.errorRate + 0.1*outcome

	if success {
		h.consecutiveFailures = 0
	} else {
		h.consecutiveFailures++
	}
}

// SetHealthy overrides the healthy flag, e.g. from an out-of-band health
// check probe.
func (h *HealthTracker) SetHealthy(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = v
}

// Snapshot is an immutable read of the tracker's current state, taken
// under the lock, for the scorer to consume without holding it.
type Snapshot struct {
	AvgResponseTime     time.Duration
	ErrorRate           float64
	ConsecutiveFailures int
	Healthy             bool
}

func (h *HealthTracker) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{
		AvgResponseTime:     h.avgResponseTime,
		ErrorRate:           h.errorRate,
		ConsecutiveFailures: h.consecutiveFailures,
		Healthy:             h.healthy,
	}
}
