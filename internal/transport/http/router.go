package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"surveykit/internal/config"
)

// NewRouter assembles the results API router.
func NewRouter(cfg config.ServerConfig, store *ResultsStore, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	results := NewResultsHandler(store, logger)
	health := NewHealthHandler(store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(RequestLogger(logger))
	if cfg.RateLimit.Enabled {
		limiter := NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
		r.Use(limiter.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HealthCheck)
		r.Route("/results", func(r chi.Router) {
			r.Get("/", results.Run)
			r.Get("/paths", results.Paths)
			r.Get("/fit-indices", results.FitIndices)
			r.Get("/reliability", results.Reliability)
			r.Get("/mediation", results.Mediation)
			r.Get("/segments", results.Segments)
			r.Get("/factors", results.Factors)
			r.Get("/issues", results.Issues)
		})
	})
	return r
}
