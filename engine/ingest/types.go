package ingest

import (
	"github.com/WessleyAI/wessley-kg/engine/graph"
	"github.com/WessleyAI/wessley-kg/engine/kg"
)

// Request asks a worker to extract a graph from Content.
type Request struct {
	// ID correlates the request with its Result. Workers assign one when
	// it is empty.
	ID      string `json:"id"`
	Content string `json:"content"`
	// Raw skips parsing and returns only the completion text.
	Raw bool `json:"raw,omitempty"`
	// Store saves the parsed element in the graph store.
	Store bool `json:"store,omitempty"`
}

// Result is published on ResultSubject and sent to the requester.
type Result struct {
	ID      string             `json:"id"`
	Raw     string             `json:"raw,omitempty"`
	Graph   *kg.GraphElement   `json:"graph,omitempty"`
	Saved   *graph.SaveSummary `json:"saved,omitempty"`
	Error   string             `json:"error,omitempty"`
	Retries int                `json:"retries,omitempty"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}
