package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
)

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, 200, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Node(id='a', type='T', properties={})"},"finish_reason":"stop"}]}`, &seen)

	c, err := NewChatClient(llm.Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "gpt-4o-mini", System: "sys"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Node(id='a', type='T', properties={})" {
		t.Errorf("out = %q", out)
	}
	if seen["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", seen["model"])
	}
	msgs, _ := seen["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", seen["messages"])
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := newServer(t, 200, `{"id":"c1","choices":[]}`, nil)
	c, _ := NewChatClient(llm.Config{BaseURL: srv.URL + "/v1"})
	if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCompleteStatusError(t *testing.T) {
	srv := newServer(t, 429, `{"error":{"message":"slow down","type":"rate_limit"}}`, nil)
	c, _ := NewChatClient(llm.Config{BaseURL: srv.URL + "/v1", APIKey: "k"})
	_, err := c.Complete(context.Background(), "p")
	var se *llm.StatusError
	if !errors.As(err, &se) || se.Code != 429 {
		t.Fatalf("expected status error 429, got %v", err)
	}
	if !llm.Retryable(err) {
		t.Error("429 should be retryable")
	}
}

func TestNewChatClientRequiresKey(t *testing.T) {
	if _, err := NewChatClient(llm.Config{}); !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestRequestDefaults(t *testing.T) {
	c, err := NewChatClient(llm.Config{APIKey: "k", Temperature: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	req := c.request("p")
	if req.Model != DefaultModel || len(req.Messages) != 1 || req.Temperature != 0.5 {
		t.Errorf("request = %+v", req)
	}
}
