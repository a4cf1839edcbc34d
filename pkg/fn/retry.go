package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int
	InitialWait time.Duration
	// MaxWait caps a single backoff sleep. Zero means no cap.
	MaxWait time.Duration
	// Jitter scales each sleep by a random factor in [0.5, 1.5).
	Jitter bool
	// Retryable decides whether a failed attempt is retried. Nil retries
	// every error.
	Retryable func(error) bool
	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// Retry calls f until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The wait doubles after every attempt.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	wait := opts.InitialWait

	var r Result[T]
	for attempt := 1; ; attempt++ {
		r = f(ctx)
		if r.IsOk() || attempt == attempts {
			return r
		}
		if opts.Retryable != nil && !opts.Retryable(r.err) {
			return r
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, r.err)
		}

		t := time.NewTimer(backoff(wait, opts))
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

func backoff(wait time.Duration, opts RetryOpts) time.Duration {
	if opts.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if opts.MaxWait > 0 && wait > opts.MaxWait {
		wait = opts.MaxWait
	}
	return wait
}
