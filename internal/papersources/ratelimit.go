package papersources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter that keeps registry traffic under
// the documented polite rates. It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
	base    rate.Limit
}

// NewRateLimiter creates a limiter with ratePerSecond sustained requests and a
// bucket of burst tokens.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		base:    rate.Limit(ratePerSecond),
	}
}

// Wait blocks until a request is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetRate updates the sustained rate.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// Throttle slows the limiter to one request per retryAfter after the registry
// answered 429. It never raises the rate above the configured one.
func (r *RateLimiter) Throttle(retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}
	if slowed := 1 / retryAfter.Seconds(); slowed < float64(r.base) {
		r.SetRate(slowed)
	}
}

// Restore returns to the configured rate after a successful response.
func (r *RateLimiter) Restore() {
	if r.limiter.Limit() != r.base {
		r.SetRate(float64(r.base))
	}
}
