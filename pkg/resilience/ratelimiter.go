package resilience

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures the token bucket rate limiter.
type LimiterOpts struct {
	// Rate is the number of tokens added per second. Zero or less means
	// unlimited.
	Rate float64
	// Burst is the maximum number of tokens (bucket capacity).
	Burst int
}

// Limiter is a token bucket rate limiter backed by golang.org/x/time/rate.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter creates a token bucket rate limiter.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Limit(opts.Rate)
	if opts.Rate <= 0 {
		limit = rate.Inf
	}
	return &Limiter{rl: rate.NewLimiter(limit, opts.Burst)}
}

// Allow checks if a request is allowed (non-blocking).
func (l *Limiter) Allow() bool { return l.rl.Allow() }

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error { return l.rl.Wait(ctx) }

// Call executes f if a token is available, otherwise returns ErrRateLimited.
func (l *Limiter) Call(ctx context.Context, f func(context.Context) error) error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return f(ctx)
}

// CallWait waits for a token then executes f.
func (l *Limiter) CallWait(ctx context.Context, f func(context.Context) error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return f(ctx)
}
