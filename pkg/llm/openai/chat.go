// Package openai provides a Completer for OpenAI and OpenAI-compatible
// chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = goopenai.GPT3Dot5Turbo

// ChatClient implements llm.Completer with the chat completions API.
type ChatClient struct {
	client      *goopenai.Client
	model       string
	system      string
	temperature float32
	maxTokens   int
}

// NewChatClient creates a client. A BaseURL in cfg points it at any
// OpenAI-compatible server; a local server may omit the API key.
func NewChatClient(cfg llm.Config) (*ChatClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrMissingAPIKey)
	}
	key := cfg.APIKey
	if key == "" {
		key = "not-needed"
	}
	config := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &ChatClient{
		client:      goopenai.NewClientWithConfig(config),
		model:       model,
		system:      cfg.System,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (c *ChatClient) request(prompt string) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if c.system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: c.system,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})
	return goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

// Complete sends one chat completion request.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(prompt))
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			return "", &llm.StatusError{Provider: "openai", Code: apiErr.HTTPStatusCode, Err: err}
		}
		var reqErr *goopenai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
			return "", &llm.StatusError{Provider: "openai", Code: reqErr.HTTPStatusCode, Err: err}
		}
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", llm.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
