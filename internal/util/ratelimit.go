package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces outbound requests to stay under a venue's per-minute
// API cap. It is a single-token bucket: the first request passes
// immediately, then tokens accrue at the configured rate with no burst
// beyond one.
type RateLimiter struct {
	mu        sync.Mutex
	perSecond float64
	tokens    float64
	last      time.Time
}

// NewRateLimiter allows perMinute requests per minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perSecond: float64(perMinute) / 60.0,
		tokens:    1,
		last:      time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled. It sleeps for
// the exact shortfall rather than polling, so callers wake as soon as the
// bucket refills.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.tokens += now.Sub(rl.last).Seconds() * rl.perSecond
		if rl.tokens > 1 {
			rl.tokens = 1
		}
		rl.last = now

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		shortfall := time.Duration((1 - rl.tokens) / rl.perSecond * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(shortfall):
		}
	}
}
