// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/storage"
	"github.com/atlasworkforce/labor-intel/pkg/engine"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(
	logger *observability.Logger,
	cfg *config.Config,
	eng *engine.Engine,
	audit *storage.AuditStore,
	store *patterns.Store,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"labor-intel"}`))
	})

	h := NewQueryHandler(logger, eng, audit, store)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Post("/query/csv", h.QueryCSV)
		r.Delete("/scope", h.ClearScope)
		r.Get("/categories", h.Categories)
		r.Get("/history", h.History)
		r.Get("/history/{queryID}", h.HistoryEntry)
		r.Get("/stats/csv", h.CSVStats)
	})

	return r
}
