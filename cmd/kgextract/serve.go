package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-kg/pkg/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extraction HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireConfig(a); err != nil {
				return err
			}
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return runServe(a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func runServe(a *app) error {
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

	s := &server{
		ext:      ext,
		store:    storeOrNil(store),
		metrics:  m,
		logger:   logger,
		provider: cfg.LLM.Provider,
		model:    cfg.LLM.Model,
	}
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      s.handler(cfg.HTTP),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.HTTP.Addr, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
