package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/wessley-kg/engine/extract"
	"github.com/WessleyAI/wessley-kg/engine/graph"
	"github.com/WessleyAI/wessley-kg/pkg/config"
	"github.com/WessleyAI/wessley-kg/pkg/fn"
	"github.com/WessleyAI/wessley-kg/pkg/llm"
	"github.com/WessleyAI/wessley-kg/pkg/llm/provider"
	"github.com/WessleyAI/wessley-kg/pkg/metrics"
	"github.com/WessleyAI/wessley-kg/pkg/resilience"
)

// newCompleter builds the configured backend wrapped, outermost first, in
// retry, circuit breaker, rate limit and per-attempt timeout.
func newCompleter(cfg *config.Config, logger *slog.Logger) (llm.Completer, error) {
	backend, err := provider.New(cfg.LLM.Completion(extract.SystemPrompt))
	if err != nil {
		return nil, err
	}
	r := cfg.Resilience
	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: r.BreakerFails,
		Timeout:       r.BreakerReset,
		IsFailure:     llm.Retryable,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("llm: circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: r.RatePerSecond, Burst: r.RateBurst})

	return llm.Chain(backend,
		llm.WithRetry(fn.RetryOpts{
			MaxAttempts: r.RetryAttempts,
			InitialWait: r.RetryWait,
			MaxWait:     r.RetryMaxWait,
			Jitter:      true,
		}, logger),
		llm.WithBreaker(breaker),
		llm.WithRateLimit(limiter),
		llm.WithTimeout(cfg.LLM.Timeout),
	), nil
}

func newExtractor(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*extract.Extractor, error) {
	c, err := newCompleter(cfg, logger)
	if err != nil {
		return nil, err
	}
	return extract.New(c, extract.WithLogger(logger), extract.WithMetrics(m)), nil
}

// openStore connects to Neo4j. It returns a nil store when no URI is
// configured.
func openStore(ctx context.Context, cfg config.Neo4jConfig, logger *slog.Logger) (*graph.Store, func(), error) {
	if cfg.URI == "" {
		return nil, func() {}, nil
	}
	auth := neo4j.NoAuth()
	if cfg.User != "" {
		auth = neo4j.BasicAuth(cfg.User, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, nil, fmt.Errorf("neo4j verify: %w", err)
	}
	logger.Info("neo4j connected", "uri", cfg.URI)
	return graph.NewFromDriver(driver, cfg.Database, graph.WithLogger(logger)),
		func() { driver.Close(context.Background()) }, nil
}
