package providers

import (
	"sync"
	"time"

	"github.com/jbelanger/exitbook/internal/config"
)

// CircuitState is the breaker's tri-state value.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker tracks one provider's consecutive-failure state. It is
// safe for concurrent use; every method takes a short critical section
// "Shared resource policy".
type CircuitBreaker struct {
	mu sync.Mutex

	cfg config.CircuitConfig

	failureCount    int
	lastFailureTime time.Time
	lastSuccessTime time.Time
}

// NewCircuitBreaker builds a breaker with the given config.
func NewCircuitBreaker(cfg config.CircuitConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg = config.DefaultCircuitConfig()
	}
	return &CircuitBreaker{cfg: cfg}
}

// RecordSuccess resets the failure count to zero.
func (b *CircuitBreaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.lastSuccessTime = now
}

// RecordFailure increments the failure count. Callers should only invoke
// this for errors that OpensCircuit (transient-network); rate-limit and
// validation errors must not count toward opening the circuit.
func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = now
}

// State computes the breaker's current state relative to now:
//
//	closed:    failures < max
//	open:      failures >= max AND now-lastFailure < recoveryTimeout
//	half-open: failures >= max AND timeout elapsed
func (b *CircuitBreaker) State(now time.Time) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failureCount < b.cfg.MaxFailures {
		return CircuitClosed
	}
	if now.Sub(b.lastFailureTime) < b.cfg.RecoveryTimeout {
		return CircuitOpen
	}
	return CircuitHalfOpen
}

// FailureCount returns the current consecutive-failure count, used by the
// scorer's "consecutive-failure x 10 subtracted" term.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
