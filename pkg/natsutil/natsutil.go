// Package natsutil provides typed NATS publish/subscribe/request helpers
// with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Inject writes the trace context of ctx into msg headers.
func Inject(ctx context.Context, msg *nats.Msg) {
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
}

// Extract returns a context carrying the trace context found in msg headers.
func Extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
}

// NewMsg encodes v as JSON into a message for subject with ctx's trace
// context in its headers.
func NewMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	Inject(ctx, msg)
	return msg, nil
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Respond encodes v as JSON and replies to msg. It is a no-op when msg
// has no reply subject.
func Respond[T any](ctx context.Context, nc *nats.Conn, msg *nats.Msg, v T) error {
	if msg.Reply == "" {
		return nil
	}
	return Publish(ctx, nc, msg.Reply, v)
}

// Handler processes one decoded message. The raw message is passed for
// access to headers and the reply subject.
type Handler[T any] func(ctx context.Context, v T, msg *nats.Msg)

// SubscribeOpts configures Subscribe.
type SubscribeOpts struct {
	// Queue joins a queue group so each message is handled by one member.
	Queue string
	// OnDecodeError is called for messages that are not valid JSON for T.
	// Nil drops them silently.
	OnDecodeError func(msg *nats.Msg, err error)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
func Subscribe[T any](nc *nats.Conn, subject string, opts SubscribeOpts, handler Handler[T]) (*nats.Subscription, error) {
	cb := func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			if opts.OnDecodeError != nil {
				opts.OnDecodeError(msg, err)
			}
			return
		}
		handler(Extract(msg), v, msg)
	}
	if opts.Queue != "" {
		return nc.QueueSubscribe(subject, opts.Queue, cb)
	}
	return nc.Subscribe(subject, cb)
}

// Request sends a JSON-encoded request and decodes the response. The
// wait is bounded by ctx; without a deadline nats.DefaultTimeout applies.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	msg, err := NewMsg(ctx, subject, req)
	if err != nil {
		return zero, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}
	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, fmt.Errorf("natsutil: request %s: %w", subject, err)
	}
	var result Resp
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return zero, fmt.Errorf("natsutil: decode reply from %s: %w", subject, err)
	}
	return result, nil
}
