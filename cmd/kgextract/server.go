package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/WessleyAI/wessley-kg/engine/extract"
	"github.com/WessleyAI/wessley-kg/engine/graph"
	"github.com/WessleyAI/wessley-kg/engine/ingest"
	"github.com/WessleyAI/wessley-kg/engine/kg"
	"github.com/WessleyAI/wessley-kg/pkg/config"
	"github.com/WessleyAI/wessley-kg/pkg/metrics"
	"github.com/WessleyAI/wessley-kg/pkg/mid"
	"github.com/WessleyAI/wessley-kg/pkg/repo"
)

// graphStore is the part of graph.Store the API serves.
type graphStore interface {
	SaveElement(ctx context.Context, el *kg.GraphElement) (graph.SaveSummary, error)
	GetNode(ctx context.Context, id kg.ID) (kg.Node, error)
	ListNodes(ctx context.Context, typ string, offset, limit int) ([]kg.Node, error)
	DeleteNode(ctx context.Context, id kg.ID) error
	Neighbors(ctx context.Context, id kg.ID, depth int) ([]kg.Node, error)
	Stats(ctx context.Context) (graph.Stats, error)
}

// server holds the API dependencies. store may be nil.
type server struct {
	ext      ingest.Extractor
	store    graphStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	provider string
	model    string
}

// ExtractRequest is the JSON body for POST /api/extract.
type ExtractRequest struct {
	Content string `json:"content"`
	Raw     bool   `json:"raw,omitempty"`
	Store   bool   `json:"store,omitempty"`
}

// ExtractResponse is the JSON response for POST /api/extract.
type ExtractResponse struct {
	Raw   string             `json:"raw"`
	Graph *kg.GraphElement   `json:"graph,omitempty"`
	Saved *graph.SaveSummary `json:"saved,omitempty"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/extract", s.handleExtract)
	mux.HandleFunc("GET /api/graph/stats", s.withStore(s.handleStats))
	mux.HandleFunc("GET /api/graph/nodes", s.withStore(s.handleListNodes))
	mux.HandleFunc("GET /api/graph/nodes/{id}", s.withStore(s.handleGetNode))
	mux.HandleFunc("DELETE /api/graph/nodes/{id}", s.withStore(s.handleDeleteNode))
	mux.HandleFunc("GET /api/graph/nodes/{id}/neighbors", s.withStore(s.handleNeighbors))
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// handler wraps the routes in the middleware chain.
func (s *server) handler(cfg config.HTTPConfig) http.Handler {
	return mid.Chain(s.routes(),
		mid.Recover(s.logger),
		mid.OTel("kgextract"),
		mid.RequestID(),
		mid.Logger(s.logger),
		mid.CORS(cfg.CORSOrigin),
		mid.MaxBody(cfg.MaxBodyBytes),
		mid.Metrics(s.metrics),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.provider,
		"model":    s.model,
		"store":    s.store != nil,
	})
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Store && !req.Raw && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "graph store not configured")
		return
	}

	out, err := s.ext.Run(r.Context(), kg.Text(req.Content), !req.Raw)
	if err != nil {
		s.logger.Error("extraction failed", "error", err, "request_id", mid.RequestIDFrom(r.Context()))
		if errors.Is(err, extract.ErrExtractionService) {
			writeError(w, http.StatusBadGateway, "extraction service failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := ExtractResponse{Raw: out.Raw, Graph: out.Graph}
	if req.Store && out.Graph != nil {
		sum, err := s.store.SaveElement(r.Context(), out.Graph)
		if err != nil {
			s.logger.Error("graph save failed", "error", err)
			writeError(w, http.StatusBadGateway, "graph store failed")
			return
		}
		resp.Saved = &sum
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) withStore(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "graph store not configured")
			return
		}
		h(w, r)
	}
}

func (s *server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	s.logger.Error("graph query failed", "error", err)
	writeError(w, http.StatusBadGateway, "graph store failed")
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err1 := intParam(q.Get("offset"), 0)
	limit, err2 := intParam(q.Get("limit"), repo.DefaultLimit)
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, "offset and limit must be integers")
		return
	}
	nodes, err := s.store.ListNodes(r.Context(), q.Get("type"), offset, limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []kg.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.store.GetNode(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteNode(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	depth, err := intParam(r.URL.Query().Get("depth"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "depth must be an integer")
		return
	}
	nodes, err := s.store.Neighbors(r.Context(), id, depth)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []kg.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

// pathID reads the {id} path value. Integer ids are selected with
// ?id_type=int since "1" and 1 are different nodes.
func pathID(w http.ResponseWriter, r *http.Request) (kg.ID, bool) {
	raw := r.PathValue("id")
	if r.URL.Query().Get("id_type") != "int" {
		return kg.StringID(raw), true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id is not an integer")
		return kg.ID{}, false
	}
	return kg.IntID(n), true
}

func intParam(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
