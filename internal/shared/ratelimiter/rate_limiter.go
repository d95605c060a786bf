// Package ratelimiter throttles calls to external APIs.
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface limits how often an operation such as an API call may run.
type RateLimiterInterface interface {
	Wait(ctx context.Context) error
}

// RateLimiter is a token bucket allowing limit calls per interval.
type RateLimiter struct {
	limiter *rate.Limiter
}

var _ RateLimiterInterface = (*RateLimiter)(nil)

// NewRateLimiter allows limit calls per interval, with bursts of up to limit calls.
// A non-positive limit disables throttling.
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := rate.Every(interval / time.Duration(limit))
	return &RateLimiter{limiter: rate.NewLimiter(every, limit)}
}

// NewPerSecond allows perSecond calls per second with the given burst.
func NewPerSecond(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait returns immediately while tokens remain, otherwise blocks until one is
// available or ctx is done. A nil RateLimiter never waits.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	if rl.limiter.Allow() {
		return nil
	}
	slog.Debug("rate limit reached, waiting", "limit", float64(rl.limiter.Limit()), "burst", rl.limiter.Burst())
	return rl.limiter.Wait(ctx)
}
