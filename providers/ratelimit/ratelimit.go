// Package ratelimit implements per-provider token-bucket rate limiting on
// top of golang.org/x/time/rate, honoring the requests_per_second/
// per_minute/per_hour/burst envelope each adapter advertises.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Envelope is a provider's advertised rate-limit shape.
type Envelope struct {
	RequestsPerSecond float64
	PerMinute         int
	PerHour           int
	Burst             int
}

// Limiter blocks callers before HTTP dispatch so the process never
// exceeds a provider's advertised envelope. It folds the three window
// granularities into the single most-restrictive rate.Limit.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter honoring the most restrictive of the three
// advertised windows (per-second, per-minute, per-hour).
func New(env Envelope) *Limiter {
	limit := rate.Inf
	if env.RequestsPerSecond > 0 {
		limit = minLimit(limit, rate.Limit(env.RequestsPerSecond))
	}
	if env.PerMinute > 0 {
		limit = minLimit(limit, rate.Limit(float64(env.PerMinute)/60.0))
	}
	if env.PerHour > 0 {
		limit = minLimit(limit, rate.Limit(float64(env.PerHour)/3600.0))
	}
	burst := env.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(limit, burst)}
}

func minLimit(a, b rate.Limit) rate.Limit {
	if a < b {
		return a
	}
	return b
}

// Wait blocks until a token is available or ctx is done. Call this
// immediately before dispatching an HTTP request to the provider.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// Allow reports, without blocking, whether a call may proceed right now.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}
