// Package provider builds a completion backend from configuration.
package provider

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
	"github.com/WessleyAI/wessley-kg/pkg/llm/anthropic"
	"github.com/WessleyAI/wessley-kg/pkg/llm/ollama"
	"github.com/WessleyAI/wessley-kg/pkg/llm/openai"
	"github.com/WessleyAI/wessley-kg/pkg/llm/openrouter"
)

// Provider names accepted by New.
const (
	Ollama     = "ollama"
	OpenAI     = "openai"
	Anthropic  = "anthropic"
	OpenRouter = "openrouter"
)

// Names lists the supported providers.
var Names = []string{Ollama, OpenAI, Anthropic, OpenRouter}

// New returns the backend named by cfg.Provider (case-insensitive).
func New(cfg llm.Config) (llm.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case Ollama:
		return ollama.NewChatClient(cfg), nil
	case OpenAI:
		c, err := openai.NewChatClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case Anthropic:
		c, err := anthropic.NewMessagesClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case OpenRouter:
		c, err := openrouter.NewChatClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w %q (want one of %s)", llm.ErrUnknownProvider, cfg.Provider, strings.Join(Names, ", "))
	}
}
