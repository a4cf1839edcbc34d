// Package anthropic provides a Completer backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
)

const (
	// DefaultModel is used when the configuration names none.
	DefaultModel = "claude-3-5-haiku-latest"
	// DefaultMaxTokens bounds a completion when the configuration does not.
	DefaultMaxTokens = 4096
)

// MessagesClient implements llm.Completer with one Messages.New call per
// prompt. SDK-level retries are disabled; retry belongs to llm.WithRetry.
type MessagesClient struct {
	client      sdk.Client
	model       sdk.Model
	system      string
	temperature float64
	maxTokens   int64
}

// NewMessagesClient creates a client from cfg.
func NewMessagesClient(cfg llm.Config) (*MessagesClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", llm.ErrMissingAPIKey)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &MessagesClient{
		client:      sdk.NewClient(opts...),
		model:       sdk.Model(model),
		system:      cfg.System,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (c *MessagesClient) params(prompt string) sdk.MessageNewParams {
	p := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		p.System = []sdk.TextBlockParam{{Text: c.system}}
	}
	if c.temperature > 0 {
		p.Temperature = sdk.Float(c.temperature)
	}
	return p
}

// Complete sends one message and concatenates the text blocks of the reply.
func (c *MessagesClient) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, c.params(prompt))
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", &llm.StatusError{Provider: "anthropic", Code: apiErr.StatusCode, Err: err}
		}
		return "", fmt.Errorf("anthropic: messages: %w", err)
	}

	var b strings.Builder
	found := false
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("anthropic: %w", llm.ErrEmptyResponse)
	}
	return b.String(), nil
}
