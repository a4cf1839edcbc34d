package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-kg/pkg/config"
)

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"provider":    "llm.provider",
	"model":       "llm.model",
	"base-url":    "llm.base_url",
	"temperature": "llm.temperature",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.file",
	"neo4j-uri":   "neo4j.uri",
	"nats-url":    "nats.url",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var cfgFile, envFile string

	root := &cobra.Command{
		Use:           "kgextract",
		Short:         "Extract knowledge graphs from text with an LLM",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			l := config.NewLoader()
			for name, key := range flagKeys {
				if err := l.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return err
				}
			}
			cfg, err := l.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, closer, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if closer != nil {
				a.closers = append(a.closers, closer)
			}
			slog.SetDefault(logger)
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("provider", "", "completion backend (ollama, openai, anthropic, openrouter)")
	pf.String("model", "", "model name")
	pf.String("base-url", "", "backend base URL")
	pf.Float64("temperature", 0, "sampling temperature")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")
	pf.String("log-file", "", "also write logs to this rotated file")
	pf.String("neo4j-uri", "", "Neo4j URI; empty disables graph storage")
	pf.String("nats-url", "", "NATS server URL")

	root.AddCommand(newExtractCmd(a), newServeCmd(a), newWorkerCmd(a))
	return root
}

func requireConfig(a *app) error {
	if a.cfg == nil {
		return fmt.Errorf("kgextract: configuration not loaded")
	}
	return nil
}
