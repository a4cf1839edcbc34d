package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCompletion(t *testing.T) {
	m := New()
	m.ObserveCompletion("parsed", time.Second, nil)
	m.ObserveCompletion("raw", time.Second, errors.New("down"))

	if got := testutil.ToFloat64(m.Extractions.WithLabelValues("parsed")); got != 1 {
		t.Errorf("parsed extractions = %v", got)
	}
	if got := testutil.ToFloat64(m.ExtractionErrors); got != 1 {
		t.Errorf("errors = %v", got)
	}
	if got := testutil.CollectAndCount(m.CompletionSeconds); got != 1 {
		t.Errorf("histogram series = %d", got)
	}
}

func TestObserveGraphAndDiscards(t *testing.T) {
	m := New()
	m.ObserveGraph(3, 2)
	m.ObserveDiscarded("dangling", 2)
	m.ObserveDiscarded("invalid", 0)

	if got := testutil.ToFloat64(m.NodesExtracted); got != 3 {
		t.Errorf("nodes = %v", got)
	}
	if got := testutil.ToFloat64(m.RelsExtracted); got != 2 {
		t.Errorf("rels = %v", got)
	}
	if got := testutil.ToFloat64(m.Discarded.WithLabelValues("dangling")); got != 2 {
		t.Errorf("dangling = %v", got)
	}
	if got := testutil.CollectAndCount(m.Discarded); got != 1 {
		t.Errorf("zero discards should not create a series, got %d", got)
	}
}

func TestTrackInFlight(t *testing.T) {
	m := New()
	done := m.TrackInFlight()
	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Errorf("in flight = %v", got)
	}
	done()
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("in flight = %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCompletion("raw", time.Second, nil)
	m.ObserveGraph(1, 1)
	m.ObserveDiscarded("x", 1)
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.ObserveMessage("ok")
	m.TrackInFlight()()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/extract", 200, 10*time.Millisecond)
	m.ObserveMessage("published")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`kg_http_requests_total{method="POST",route="/api/extract",status="200"} 1`,
		`kg_worker_messages_total{outcome="published"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
