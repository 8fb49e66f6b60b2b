package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// HealthHandler answers liveness and version probes.
type HealthHandler struct {
	store   *ResultsStore
	started time.Time
}

// NewHealthHandler creates a health handler over the store.
func NewHealthHandler(store *ResultsStore) *HealthHandler {
	return &HealthHandler{store: store, started: time.Now()}
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	runID := ""
	if res := h.store.Latest(); res != nil {
		runID = res.RunID
	} else {
		status = "no_run"
	}
	render.JSON(w, r, map[string]any{
		"status":  status,
		"run_id":  runID,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"version": Version,
	})
}
