// Package http exposes a read-only API over the result tables of a
// completed analysis run.
package http

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"

	"surveykit/internal/errors"
	"surveykit/internal/pipeline"
)

// ResultsStore holds the latest completed run for serving. Publishing
// a new run atomically replaces the previous one.
type ResultsStore struct {
	mu      sync.RWMutex
	results *pipeline.Results
}

// NewResultsStore creates an empty store.
func NewResultsStore() *ResultsStore {
	return &ResultsStore{}
}

// Publish replaces the served run.
func (s *ResultsStore) Publish(res *pipeline.Results) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = res
}

// Latest returns the served run, or nil when no run has completed.
func (s *ResultsStore) Latest() *pipeline.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results
}

// ResultsHandler serves result tables as JSON.
type ResultsHandler struct {
	store  *ResultsStore
	logger *slog.Logger
}

// NewResultsHandler creates a handler over the store.
func NewResultsHandler(store *ResultsStore, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "results")),
	}
}

func (h *ResultsHandler) latest(w http.ResponseWriter, r *http.Request) (*pipeline.Results, bool) {
	res := h.store.Latest()
	if res == nil {
		h.logger.DebugContext(r.Context(), "no run available yet",
			slog.String("path", r.URL.Path))
		render.Render(w, r, errors.New(errors.CodeNotFound, "no analysis run available"))
		return nil, false
	}
	return res, true
}

// Run handles GET /api/results: run metadata without the tables.
func (h *ResultsHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, ok := h.latest(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, map[string]any{
		"run_id":       res.RunID,
		"study":        res.Study,
		"generated_at": res.GeneratedAt,
		"respondents":  res.Respondents,
		"issue_count":  len(res.Issues),
	})
}

// Paths handles GET /api/results/paths.
func (h *ResultsHandler) Paths(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.latest(w, r); ok {
		render.JSON(w, r, res.Model)
	}
}

// FitIndices handles GET /api/results/fit-indices.
func (h *ResultsHandler) FitIndices(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.latest(w, r); ok {
		render.JSON(w, r, res.FitIndices)
	}
}

// Reliability handles GET /api/results/reliability.
func (h *ResultsHandler) Reliability(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.latest(w, r); ok {
		render.JSON(w, r, res.Reliability)
	}
}

// Mediation handles GET /api/results/mediation.
func (h *ResultsHandler) Mediation(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.latest(w, r); ok {
		render.JSON(w, r, res.Mediation)
	}
}

// Segments handles GET /api/results/segments.
func (h *ResultsHandler) Segments(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.latest(w, r); ok {
		render.JSON(w, r, res.Segments)
	}
}

// Factors handles GET /api/results/factors.
func (h *ResultsHandler) Factors(w http.ResponseWriter, r *http.Request) {
	res, ok := h.latest(w, r)
	if !ok {
		return
	}
	if res.Factors == nil {
		render.Render(w, r, errors.New(errors.CodeNotFound, "run has no factor solution"))
		return
	}
	render.JSON(w, r, res.Factors)
}

// Issues handles GET /api/results/issues: recoding issues of the run.
func (h *ResultsHandler) Issues(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.latest(w, r); ok {
		render.JSON(w, r, res.Issues)
	}
}
