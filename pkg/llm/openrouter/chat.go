// Package openrouter provides a Completer that routes chat completions
// through OpenRouter.
package openrouter

import (
	"context"
	"fmt"

	or "github.com/revrost/go-openrouter"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = "openai/gpt-3.5-turbo"

// chatAPI is the subset of *or.Client used here.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, request or.ChatCompletionRequest) (or.ChatCompletionResponse, error)
}

// ChatClient implements llm.Completer through OpenRouter.
type ChatClient struct {
	api         chatAPI
	model       string
	system      string
	temperature float32
	maxTokens   int
}

// NewChatClient creates a client from cfg.
func NewChatClient(cfg llm.Config) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w", llm.ErrMissingAPIKey)
	}
	return newChatClient(or.NewClient(cfg.APIKey), cfg), nil
}

func newChatClient(api chatAPI, cfg llm.Config) *ChatClient {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &ChatClient{
		api:         api,
		model:       model,
		system:      cfg.System,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *ChatClient) request(prompt string) or.ChatCompletionRequest {
	messages := make([]or.ChatCompletionMessage, 0, 2)
	if c.system != "" {
		messages = append(messages, or.ChatCompletionMessage{
			Role:    or.ChatMessageRoleSystem,
			Content: or.Content{Text: c.system},
		})
	}
	messages = append(messages, or.ChatCompletionMessage{
		Role:    or.ChatMessageRoleUser,
		Content: or.Content{Text: prompt},
	})
	return or.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

// Complete sends one chat completion request.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt))
	if err != nil {
		return "", fmt.Errorf("openrouter: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: %w", llm.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content.Text, nil
}
