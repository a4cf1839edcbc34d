package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/WessleyAI/wessley-kg/pkg/llm"
)

func TestComplete(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&seen)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Node(id='a', "},{"type":"text","text":"type='T', properties={})"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c, err := NewMessagesClient(llm.Config{APIKey: "key", BaseURL: srv.URL, System: "sys", Temperature: 0.3})
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
	if seen["model"] != DefaultModel || seen["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("request = %v", seen)
	}
	if _, ok := seen["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	c, _ := NewMessagesClient(llm.Config{APIKey: "key", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "p")
	var se *llm.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
	if llm.Retryable(err) {
		t.Error("400 should not be retryable")
	}
}

func TestCompleteNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer srv.Close()

	c, _ := NewMessagesClient(llm.Config{APIKey: "key", BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewMessagesClientRequiresKey(t *testing.T) {
	if _, err := NewMessagesClient(llm.Config{}); !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
