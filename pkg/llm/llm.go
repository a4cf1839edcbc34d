// Package llm defines the completion-service contract and decorators that
// add retry, circuit breaking, rate limiting and timeouts around it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Completer sends one prompt and returns the completion text. Each call is
// an independent request with no conversation state carried over.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config holds the model parameters shared by all backends.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	System      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

var (
	// ErrEmptyResponse is returned when a backend answers without any
	// completion content.
	ErrEmptyResponse = errors.New("llm: response has no completion content")
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("llm: unknown provider")
	// ErrMissingAPIKey is returned when a hosted provider has no key.
	ErrMissingAPIKey = errors.New("llm: api key required")
)

// StatusError is a non-success status returned by a completion service.
type StatusError struct {
	Provider string
	Code     int
	Err      error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm: %s: status %d: %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("llm: %s: status %d", e.Provider, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth another attempt: rate limiting,
// server errors and network timeouts are; cancellation and client errors
// are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return !errors.Is(err, ErrEmptyResponse)
}
