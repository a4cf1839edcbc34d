package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-kg/engine/ingest"
	"github.com/WessleyAI/wessley-kg/pkg/metrics"
)

func newWorkerCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume extraction requests from NATS",
		Long: fmt.Sprintf(`Consume extraction requests published on %s, publish results on %s
and dead-letter requests that keep failing on %s.`,
			ingest.ExtractSubject, ingest.ResultSubject, ingest.DLQSubject),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireConfig(a); err != nil {
				return err
			}
			if workers > 0 {
				a.cfg.NATS.Workers = workers
			}
			return runWorker(a)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent subscriptions (overrides nats.workers)")
	return cmd
}

func runWorker(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger := a.cfg, a.logger
	m := metrics.New()
	ext, err := newExtractor(cfg, logger, m)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg.Neo4j, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("kgextract-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	deps := ingest.Deps{
		Extractor:  ext,
		Metrics:    m,
		Logger:     logger,
		MaxRetries: cfg.NATS.MaxRetries,
		Timeout:    cfg.NATS.Timeout,
	}
	if store != nil {
		deps.Graph = store
	}
	w := ingest.NewWorker(nc, deps)
	if err := w.Start(cfg.NATS.Workers); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return w.Drain()
}
