//go:build integration

package natsutil

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

type job struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type done struct {
	ID    string `json:"id"`
	Bytes int    `json:"bytes"`
}

func connect(t *testing.T) *nats.Conn {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		t.Skipf("nats not reachable at %s: %v", url, err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestQueueGroupDeliversOnce(t *testing.T) {
	nc := connect(t)
	subject := "kg.integration.queue." + time.Now().Format("150405.000")

	var handled atomic.Int32
	for range 3 {
		sub, err := Subscribe(nc, subject, SubscribeOpts{Queue: "kg-itest"}, func(context.Context, job, *nats.Msg) {
			handled.Add(1)
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { sub.Unsubscribe() })
	}
	for i := range 10 {
		if err := Publish(context.Background(), nc, subject, job{ID: string(rune('a' + i))}); err != nil {
			t.Fatal(err)
		}
	}
	nc.Flush()

	deadline := time.Now().Add(5 * time.Second)
	for handled.Load() < 10 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if got := handled.Load(); got != 10 {
		t.Errorf("handled %d messages, want 10", got)
	}
}

func TestRequestRespond(t *testing.T) {
	nc := connect(t)
	subject := "kg.integration.request"

	sub, err := Subscribe(nc, subject, SubscribeOpts{}, func(ctx context.Context, j job, msg *nats.Msg) {
		Respond(ctx, nc, msg, done{ID: j.ID, Bytes: len(j.Text)})
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := Request[job, done](ctx, nc, subject, job{ID: "j1", Text: "John works at XYZ."})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "j1" || got.Bytes != 18 {
		t.Errorf("reply = %+v", got)
	}
}
