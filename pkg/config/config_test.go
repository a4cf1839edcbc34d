package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewLoader().Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.MaxBodyBytes != 1<<20 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.NATS.MaxRetries != 3 || cfg.Resilience.RetryAttempts != 3 {
		t.Errorf("nats/resilience = %+v %+v", cfg.NATS, cfg.Resilience)
	}
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kg.yaml")
	yaml := "llm:\n  provider: openai\n  model: from-file\n  temperature: 0.5\nhttp:\n  addr: \":9000\"\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KG_LLM_MODEL", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", ":8080", "")
	if err := fs.Parse([]string{"--addr", ":7000"}); err != nil {
		t.Fatal(err)
	}
	l := NewLoader()
	if err := l.BindFlag("http.addr", fs.Lookup("addr")); err != nil {
		t.Fatal(err)
	}
	cfg, err := l.Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q, want value from file", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "from-env" {
		t.Errorf("model = %q, env should override file", cfg.LLM.Model)
	}
	if cfg.HTTP.Addr != ":7000" {
		t.Errorf("addr = %q, flag should override file", cfg.HTTP.Addr)
	}
	if cfg.LLM.Temperature != 0.5 {
		t.Errorf("temperature = %v", cfg.LLM.Temperature)
	}
}

func TestBindUndefinedFlag(t *testing.T) {
	if err := NewLoader().BindFlag("http.addr", nil); err == nil {
		t.Error("expected error for nil flag")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("empty path: %v", err)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "none.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KG_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KG_LOG_LEVEL", "")
	os.Unsetenv("KG_LOG_LEVEL")
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewLoader().Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := NewLoader().Load("")
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "gpt-local" }},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"max tokens", func(c *Config) { c.LLM.MaxTokens = -1 }},
		{"timeout", func(c *Config) { c.LLM.Timeout = -time.Second }},
		{"retry attempts", func(c *Config) { c.Resilience.RetryAttempts = 0 }},
		{"rate", func(c *Config) { c.Resilience.RatePerSecond = -1 }},
		{"workers", func(c *Config) { c.NATS.Workers = 0 }},
		{"max retries", func(c *Config) { c.NATS.MaxRetries = 0 }},
		{"addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"body", func(c *Config) { c.HTTP.MaxBodyBytes = 0 }},
		{"level", func(c *Config) { c.Log.Level = "loud" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
	if err := base().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestCompletion(t *testing.T) {
	c := LLMConfig{Provider: "anthropic", Model: "m", APIKey: "k", Temperature: 0.2, MaxTokens: 10, Timeout: time.Second}
	got := c.Completion("sys")
	if got.Provider != "anthropic" || got.Model != "m" || got.System != "sys" || got.MaxTokens != 10 || got.Timeout != time.Second {
		t.Errorf("Completion = %+v", got)
	}
}
