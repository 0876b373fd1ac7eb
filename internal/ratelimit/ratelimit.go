// Package ratelimit throttles outbound calls to feeds and the P2P venue.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket sized in requests per minute.
type Limiter struct {
	limiter *rate.Limiter
}

// New allows requestsPerMinute with a burst of a tenth of that, at least
// one. A non-positive rate disables throttling.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := max(requestsPerMinute/10, 1)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst),
	}
}

// Wait blocks until a request may proceed or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
