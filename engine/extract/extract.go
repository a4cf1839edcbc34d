// Package extract turns content into knowledge-graph elements: it renders
// the extraction prompt, calls the completion service once, and parses the
// reply into a validated kg.GraphElement.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-kg/engine/kg"
	"github.com/WessleyAI/wessley-kg/pkg/fn"
	"github.com/WessleyAI/wessley-kg/pkg/llm"
	"github.com/WessleyAI/wessley-kg/pkg/metrics"
)

// Output modes, used as the metrics label.
const (
	ModeRaw    = "raw"
	ModeParsed = "parsed"
)

// Output is the result of Run. Graph is nil in raw mode.
type Output struct {
	Raw   string
	Graph *kg.GraphElement
}

// call is the state of one extraction. It is created fresh for every
// invocation and never shared.
type call struct {
	content kg.Content
	prompt  string
	raw     string
	report  kg.Report
	element *kg.GraphElement
}

// Extractor runs extractions against a completion backend. It holds no
// per-call state; concurrent calls are independent.
type Extractor struct {
	completer  llm.Completer
	candidates kg.CandidateExtractor
	parser     *kg.Parser
	logger     *slog.Logger
	metrics    *metrics.Metrics

	raw    fn.Stage[*call, *call]
	parsed fn.Stage[*call, *call]
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records extraction metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithCandidateExtractor replaces the matching strategy used to find
// node and relationship candidates.
func WithCandidateExtractor(c kg.CandidateExtractor) Option {
	return func(e *Extractor) { e.candidates = c }
}

// New creates an Extractor over completer.
func New(completer llm.Completer, opts ...Option) *Extractor {
	e := &Extractor{completer: completer, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	e.parser = kg.NewParser(kg.WithExtractor(e.candidates), kg.WithLogger(e.logger))

	build := fn.TracedStage("extract.prompt", e.buildPrompt)
	complete := fn.TracedStage("extract.complete", e.complete)
	parse := fn.TracedStage("extract.parse", e.parse)
	assemble := fn.TracedStage("extract.assemble", e.assemble)

	e.raw = fn.Pipeline(build, complete)
	e.parsed = fn.Pipeline(build, complete, parse, assemble)
	return e
}

func (e *Extractor) buildPrompt(_ context.Context, c *call) fn.Result[*call] {
	c.prompt = BuildPrompt(c.content)
	return fn.Ok(c)
}

func (e *Extractor) complete(ctx context.Context, c *call) fn.Result[*call] {
	if e.completer == nil {
		return fn.Err[*call](&ServiceError{Err: ErrNilCompleter})
	}
	done := e.metrics.TrackInFlight()
	start := time.Now()
	raw, err := e.completer.Complete(ctx, c.prompt)
	done()
	if err != nil {
		e.logger.Error("extract: completion failed", "error", err, "duration", time.Since(start))
		return fn.Err[*call](&ServiceError{Err: err})
	}
	c.raw = raw
	e.logger.Debug("extract: completion received", "bytes", len(raw), "duration", time.Since(start))
	return fn.Ok(c)
}

func (e *Extractor) parse(_ context.Context, c *call) fn.Result[*call] {
	c.report = e.parser.ParseReport(c.raw)
	t := c.report.Tally
	e.metrics.ObserveDiscarded("decode_error", t.DecodeErrors)
	e.metrics.ObserveDiscarded("invalid", t.Invalid)
	e.metrics.ObserveDiscarded("duplicate", t.Duplicates)
	e.metrics.ObserveDiscarded("dangling", t.Dangling)
	return fn.Ok(c)
}

func (e *Extractor) assemble(_ context.Context, c *call) fn.Result[*call] {
	c.element = kg.NewGraphElement(c.report.Nodes, c.report.Relationships, c.content)
	e.metrics.ObserveGraph(c.element.NodeCount(), c.element.RelationshipCount())
	e.logger.Info("extract: graph assembled",
		"prompt_version", PromptVersion,
		"node_count", c.element.NodeCount(),
		"relationship_count", c.element.RelationshipCount(),
		"discarded", c.report.Tally.Total(),
	)
	return fn.Ok(c)
}

// Run performs one extraction. With parseGraphElements false it returns
// only the raw completion text; otherwise Output.Graph holds the parsed
// element and Output.Raw the text it was parsed from. The only error
// returned is a *ServiceError.
func (e *Extractor) Run(ctx context.Context, content kg.Content, parseGraphElements bool) (Output, error) {
	stage, mode := e.raw, ModeRaw
	if parseGraphElements {
		stage, mode = e.parsed, ModeParsed
	}
	start := time.Now()
	c, err := stage(ctx, &call{content: content}).Unwrap()
	e.metrics.ObserveCompletion(mode, time.Since(start), err)
	if err != nil {
		return Output{}, err
	}
	return Output{Raw: c.raw, Graph: c.element}, nil
}

// Complete returns the raw completion text for content.
func (e *Extractor) Complete(ctx context.Context, content kg.Content) (string, error) {
	out, err := e.Run(ctx, content, false)
	return out.Raw, err
}

// Extract returns the parsed graph element for content.
func (e *Extractor) Extract(ctx context.Context, content kg.Content) (*kg.GraphElement, error) {
	out, err := e.Run(ctx, content, true)
	return out.Graph, err
}

// ExtractBatch extracts each content concurrently with at most workers
// calls in flight (all at once when workers <= 0). Results keep input
// order; the error of the earliest failing input is returned.
func (e *Extractor) ExtractBatch(ctx context.Context, contents []kg.Content, workers int) ([]*kg.GraphElement, error) {
	results := fn.ParMapResult(contents, workers, func(c kg.Content) fn.Result[*kg.GraphElement] {
		el, err := e.Extract(ctx, c)
		return fn.FromPair(el, err)
	})
	return fn.Collect(results).Unwrap()
}
