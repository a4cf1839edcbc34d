// Package config loads service configuration from defaults, an optional
// YAML file, KG_-prefixed environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
	"github.com/WessleyAI/wessley-kg/pkg/llm/provider"
)

// EnvPrefix prefixes every environment variable, e.g. KG_LLM_PROVIDER.
const EnvPrefix = "KG"

// Config is the full service configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	NATS       NATSConfig       `mapstructure:"nats"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
}

// LLMConfig selects and parameterizes the completion backend.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ResilienceConfig tunes the decorators around the backend.
type ResilienceConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait  time.Duration `mapstructure:"retry_max_wait"`
	BreakerFails  int           `mapstructure:"breaker_fails"`
	BreakerReset  time.Duration `mapstructure:"breaker_reset"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	RateBurst     int           `mapstructure:"rate_burst"`
}

// Neo4jConfig locates the graph store. An empty URI disables storage.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NATSConfig configures the extraction worker.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Workers int    `mapstructure:"workers"`
	// MaxRetries is the number of attempts before a request is
	// dead-lettered.
	MaxRetries int `mapstructure:"max_retries"`
	// Timeout bounds one extraction attempt.
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var defaults = map[string]any{
	"llm.provider":               provider.Ollama,
	"llm.model":                  "llama3.1",
	"llm.base_url":               "",
	"llm.api_key":                "",
	"llm.temperature":            0.0,
	"llm.max_tokens":             0,
	"llm.timeout":                "2m",
	"resilience.retry_attempts":  3,
	"resilience.retry_wait":      "1s",
	"resilience.retry_max_wait":  "30s",
	"resilience.breaker_fails":   5,
	"resilience.breaker_reset":   "30s",
	"resilience.rate_per_second": 0.0,
	"resilience.rate_burst":      1,
	"neo4j.uri":                  "",
	"neo4j.user":                 "neo4j",
	"neo4j.password":             "",
	"neo4j.database":             "",
	"nats.url":                   "nats://localhost:4222",
	"nats.workers":               4,
	"nats.max_retries":           3,
	"nats.timeout":               "5m",
	"http.addr":                  ":8080",
	"http.cors_origin":           "*",
	"http.max_body_bytes":        1 << 20,
	"http.read_timeout":          "15s",
	"http.write_timeout":         "5m",
	"log.level":                  "info",
	"log.format":                 "text",
	"log.file":                   "",
	"log.max_size_mb":            100,
	"log.max_backups":            3,
	"log.max_age_days":           28,
}

// Loader accumulates configuration sources before Load.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader with defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return &Loader{v: v}
}

// BindFlag makes flag override key when the flag is set explicitly.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("config: bind %s: flag not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads file (if non-empty), decodes the merged settings and
// validates them.
func (l *Loader) Load(file string) (*Config, error) {
	if file != "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: env file %s: %w", path, err)
	}
	return nil
}

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	if !slices.Contains(provider.Names, strings.ToLower(c.LLM.Provider)) {
		return bad("llm.provider %q (want one of %s)", c.LLM.Provider, strings.Join(provider.Names, ", "))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return bad("llm.temperature %v out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 0 {
		return bad("llm.max_tokens must not be negative")
	}
	if c.LLM.Timeout < 0 {
		return bad("llm.timeout must not be negative")
	}
	if c.Resilience.RetryAttempts < 1 {
		return bad("resilience.retry_attempts must be at least 1")
	}
	if c.Resilience.RatePerSecond < 0 {
		return bad("resilience.rate_per_second must not be negative")
	}
	if c.NATS.Workers < 1 {
		return bad("nats.workers must be at least 1")
	}
	if c.NATS.MaxRetries < 1 {
		return bad("nats.max_retries must be at least 1")
	}
	if c.HTTP.Addr == "" {
		return bad("http.addr is required")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return bad("http.max_body_bytes must be positive")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		return bad("log.level %q", c.Log.Level)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Log.Format)) {
		return bad("log.format %q", c.Log.Format)
	}
	return nil
}

// Completion returns the backend parameters with system as the system
// prompt.
func (c LLMConfig) Completion(system string) llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		System:      system,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
	}
}
