// Package metrics registers the service's Prometheus collectors and
// exposes them over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kg"

// DefaultBuckets are the completion latency buckets (in seconds). Model
// calls are slow, so the range extends well past HTTP defaults.
var DefaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

// Metrics holds every collector the service reports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	Extractions       *prometheus.CounterVec
	ExtractionErrors  prometheus.Counter
	CompletionSeconds prometheus.Histogram
	NodesExtracted    prometheus.Counter
	RelsExtracted     prometheus.Counter
	Discarded         *prometheus.CounterVec
	InFlight          prometheus.Gauge
	HTTPRequests      *prometheus.CounterVec
	HTTPSeconds       *prometheus.HistogramVec
	Messages          *prometheus.CounterVec
}

// New creates a registry with Go and process collectors plus the service
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		reg: reg,
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extractions_total",
			Help: "Extraction calls by output mode.",
		}, []string{"mode"}),
		ExtractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "extraction_errors_total",
			Help: "Extraction calls that failed at the completion service.",
		}),
		CompletionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "completion_duration_seconds",
			Help:    "Latency of completion service calls.",
			Buckets: DefaultBuckets,
		}),
		NodesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "nodes_extracted_total",
			Help: "Nodes accepted into graph elements.",
		}),
		RelsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relationships_extracted_total",
			Help: "Relationships accepted into graph elements.",
		}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "candidates_discarded_total",
			Help: "Candidates dropped while parsing, by reason.",
		}, []string{"reason"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "extractions_in_flight",
			Help: "Extraction calls currently waiting on the completion service.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_messages_total",
			Help: "Worker messages by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.Extractions, m.ExtractionErrors, m.CompletionSeconds,
		m.NodesExtracted, m.RelsExtracted, m.Discarded, m.InFlight,
		m.HTTPRequests, m.HTTPSeconds, m.Messages,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveCompletion records one completion call.
func (m *Metrics) ObserveCompletion(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(mode).Inc()
	m.CompletionSeconds.Observe(d.Seconds())
	if err != nil {
		m.ExtractionErrors.Inc()
	}
}

// ObserveGraph records the size of an accepted graph element.
func (m *Metrics) ObserveGraph(nodes, rels int) {
	if m == nil {
		return
	}
	m.NodesExtracted.Add(float64(nodes))
	m.RelsExtracted.Add(float64(rels))
}

// ObserveDiscarded records n candidates dropped for reason.
func (m *Metrics) ObserveDiscarded(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Discarded.WithLabelValues(reason).Add(float64(n))
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPSeconds.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveMessage records a worker message outcome.
func (m *Metrics) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Inc()
}
