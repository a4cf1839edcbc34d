// Package ollama provides a Completer backed by Ollama's chat HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
)

// DefaultBaseURL is the address of a local Ollama daemon.
const DefaultBaseURL = "http://localhost:11434"

// ChatClient implements llm.Completer using Ollama's /api/chat endpoint.
type ChatClient struct {
	baseURL     string
	model       string
	system      string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewChatClient creates an Ollama chat client from cfg. An empty BaseURL
// selects DefaultBaseURL.
func NewChatClient(cfg llm.Config) *ChatClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &ChatClient{
		baseURL:     base,
		model:       cfg.Model,
		system:      cfg.System,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatReq struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

// Complete sends a single non-streaming chat request.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if c.system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, _ := json.Marshal(chatReq{
		Model:    c.model,
		Messages: msgs,
		Options:  chatOptions{Temperature: c.temperature, NumPredict: c.maxTokens},
	})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama chat: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &llm.StatusError{Provider: "ollama", Code: resp.StatusCode}
		if msg := gjson.GetBytes(data, "error"); msg.Exists() {
			se.Err = errors.New(msg.String())
		}
		return "", se
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("ollama chat: invalid response body")
	}

	content := gjson.GetBytes(data, "message.content")
	if !content.Exists() {
		return "", fmt.Errorf("ollama chat: %w", llm.ErrEmptyResponse)
	}
	return content.String(), nil
}
