package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-kg/pkg/fn"
	"github.com/WessleyAI/wessley-kg/pkg/resilience"
)

// Middleware decorates a Completer.
type Middleware func(Completer) Completer

// Chain applies middlewares so the first one is outermost.
func Chain(c Completer, mws ...Middleware) Completer {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// WithRetry retries failed completions with exponential backoff. Errors
// that Retryable rejects are returned after the first attempt unless
// opts.Retryable overrides the classification.
func WithRetry(opts fn.RetryOpts, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retryable == nil {
		opts.Retryable = Retryable
	}
	if opts.OnRetry == nil {
		opts.OnRetry = func(attempt int, err error) {
			logger.Warn("llm: retrying completion", "attempt", attempt, "error", err)
		}
	}
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			return fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[string] {
				out, err := next.Complete(ctx, prompt)
				return fn.FromPair(out, err)
			}).Unwrap()
		})
	}
}

// WithBreaker rejects completions with resilience.ErrCircuitOpen while the
// breaker is open.
func WithBreaker(b *resilience.Breaker) Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			var out string
			err := b.Call(ctx, func(ctx context.Context) error {
				var err error
				out, err = next.Complete(ctx, prompt)
				return err
			})
			return out, err
		})
	}
}

// WithRateLimit waits for a limiter token before each completion.
func WithRateLimit(l *resilience.Limiter) Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			if err := l.Wait(ctx); err != nil {
				return "", err
			}
			return next.Complete(ctx, prompt)
		})
	}
}

// WithTimeout bounds each completion attempt. A non-positive d disables it.
func WithTimeout(d time.Duration) Middleware {
	return func(next Completer) Completer {
		if d <= 0 {
			return next
		}
		return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, prompt)
		})
	}
}
