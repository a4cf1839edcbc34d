// Package ingest runs graph extraction as a NATS worker: requests arrive on
// ExtractSubject, results go to ResultSubject and to the requester's reply
// subject, and requests that keep failing end up on DLQSubject.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/wessley-kg/engine/extract"
	"github.com/WessleyAI/wessley-kg/engine/graph"
	"github.com/WessleyAI/wessley-kg/engine/kg"
	"github.com/WessleyAI/wessley-kg/pkg/fn"
	"github.com/WessleyAI/wessley-kg/pkg/metrics"
	"github.com/WessleyAI/wessley-kg/pkg/natsutil"
)

const (
	// ExtractSubject is the NATS subject for incoming extraction requests.
	ExtractSubject = "kg.extract"
	// ResultSubject receives every successful Result.
	ResultSubject = "kg.extracted"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "kg.extract.dlq"
	// QueueGroup is shared by all workers so each request is handled once.
	QueueGroup = "kg-workers"
	// RetryHeader carries the number of failed attempts so far.
	RetryHeader = "X-Retry-Count"
	// DefaultMaxRetries is the number of attempts before a request is
	// dead-lettered.
	DefaultMaxRetries = 3
)

// Message outcomes, used as the metrics label.
const (
	OutcomeOK         = "ok"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
	OutcomeMalformed  = "malformed"
)

// ErrStoreDisabled is returned for Store requests when no graph store is
// configured. It is not retried.
var ErrStoreDisabled = errors.New("ingest: graph store not configured")

// Extractor runs one extraction.
type Extractor interface {
	Run(ctx context.Context, content kg.Content, parseGraphElements bool) (extract.Output, error)
}

// GraphSaver persists elements.
type GraphSaver interface {
	SaveElement(ctx context.Context, el *kg.GraphElement) (graph.SaveSummary, error)
}

// Deps holds the external dependencies of a worker.
type Deps struct {
	Extractor Extractor
	// Graph is optional; without it Store requests fail.
	Graph   GraphSaver
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// MaxRetries is the number of attempts per request. Zero or less uses
	// DefaultMaxRetries.
	MaxRetries int
	// Timeout bounds one attempt. Zero means no bound.
	Timeout time.Duration
}

// job is the state of one attempt.
type job struct {
	req Request
	res Result
}

// NewPipeline composes the extract and store stages for one request.
func NewPipeline(deps Deps) fn.Stage[Request, Result] {
	run := func(ctx context.Context, j *job) fn.Result[*job] {
		out, err := deps.Extractor.Run(ctx, kg.Text(j.req.Content), !j.req.Raw)
		if err != nil {
			return fn.Err[*job](err)
		}
		j.res.Raw, j.res.Graph = out.Raw, out.Graph
		return fn.Ok(j)
	}
	store := func(ctx context.Context, j *job) fn.Result[*job] {
		if !j.req.Store || j.req.Raw {
			return fn.Ok(j)
		}
		if deps.Graph == nil {
			return fn.Err[*job](ErrStoreDisabled)
		}
		sum, err := deps.Graph.SaveElement(ctx, j.res.Graph)
		if err != nil {
			return fn.Err[*job](err)
		}
		j.res.Saved = &sum
		return fn.Ok(j)
	}
	stages := fn.Pipeline(
		fn.TracedStage("ingest.extract", run),
		fn.TracedStage("ingest.store", store),
	)
	return func(ctx context.Context, req Request) fn.Result[Result] {
		j, err := stages(ctx, &job{req: req, res: Result{ID: req.ID}}).Unwrap()
		if err != nil {
			return fn.Err[Result](err)
		}
		return fn.Ok(j.res)
	}
}

// Worker consumes extraction requests.
type Worker struct {
	nc       *nats.Conn
	deps     Deps
	pipeline fn.Stage[Request, Result]
	log      *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewWorker creates a worker publishing on nc.
func NewWorker(nc *nats.Conn, deps Deps) *Worker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxRetries <= 0 {
		deps.MaxRetries = DefaultMaxRetries
	}
	return &Worker{nc: nc, deps: deps, pipeline: NewPipeline(deps), log: deps.Logger}
}

// Start joins QueueGroup with n subscriptions, each delivering messages on
// its own goroutine.
func (w *Worker) Start(n int) error {
	n = max(n, 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	for range n {
		sub, err := natsutil.Subscribe(w.nc, ExtractSubject, natsutil.SubscribeOpts{
			Queue:         QueueGroup,
			OnDecodeError: w.malformed,
		}, w.handle)
		if err != nil {
			for _, s := range w.subs {
				_ = s.Unsubscribe()
			}
			w.subs = nil
			return err
		}
		w.subs = append(w.subs, sub)
	}
	w.log.Info("ingest: worker started", "subject", ExtractSubject, "subscriptions", n)
	return nil
}

// Drain stops taking new messages and waits for in-flight ones.
func (w *Worker) Drain() error {
	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	var errs []error
	for _, s := range subs {
		if err := s.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Worker) malformed(msg *nats.Msg, err error) {
	w.log.Error("ingest: unmarshal failed", "error", err, "bytes", len(msg.Data))
	w.deps.Metrics.ObserveMessage(OutcomeMalformed)
}

func (w *Worker) handle(ctx context.Context, req Request, msg *nats.Msg) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	retries := retryCount(msg)

	if w.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.deps.Timeout)
		defer cancel()
	}
	res, err := w.pipeline(ctx, req).Unwrap()
	if err == nil {
		res.Retries = retries
		w.log.Info("ingest: success", "request_id", req.ID, "retry", retries)
		w.deps.Metrics.ObserveMessage(OutcomeOK)
		if err := natsutil.Publish(ctx, w.nc, ResultSubject, res); err != nil {
			w.log.Error("ingest: result publish failed", "error", err, "request_id", req.ID)
		}
		w.reply(ctx, msg, res)
		return
	}

	retries++
	w.log.Error("ingest: pipeline failed",
		"error", err,
		"request_id", req.ID,
		"retry", retries,
	)
	if retries < w.deps.MaxRetries && !errors.Is(err, ErrStoreDisabled) {
		w.deps.Metrics.ObserveMessage(OutcomeRetry)
		w.retry(ctx, req, msg, retries)
		return
	}

	w.deps.Metrics.ObserveMessage(OutcomeDeadLetter)
	dlq := dlqMessage{Request: req, Error: err.Error(), Retries: retries}
	if err := natsutil.Publish(ctx, w.nc, DLQSubject, dlq); err != nil {
		w.log.Error("ingest: DLQ publish failed", "error", err, "request_id", req.ID)
	}
	w.reply(ctx, msg, Result{ID: req.ID, Error: err.Error(), Retries: retries})
}

// retry re-publishes req with the incremented retry count. The reply
// subject is kept so the final outcome still reaches the requester.
func (w *Worker) retry(ctx context.Context, req Request, msg *nats.Msg, retries int) {
	retryMsg, err := natsutil.NewMsg(ctx, ExtractSubject, req)
	if err != nil {
		w.log.Error("ingest: retry encode failed", "error", err, "request_id", req.ID)
		return
	}
	retryMsg.Reply = msg.Reply
	retryMsg.Header.Set(RetryHeader, strconv.Itoa(retries))
	if err := w.nc.PublishMsg(retryMsg); err != nil {
		w.log.Error("ingest: retry publish failed", "error", err, "request_id", req.ID)
	}
}

func (w *Worker) reply(ctx context.Context, msg *nats.Msg, res Result) {
	if err := natsutil.Respond(ctx, w.nc, msg, res); err != nil {
		w.log.Error("ingest: reply failed", "error", err, "request_id", res.ID)
	}
}

func retryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n, err := strconv.Atoi(msg.Header.Get(RetryHeader))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
