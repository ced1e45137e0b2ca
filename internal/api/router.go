package api

import (
	"encoding/json"
	"net/http"

	"github.com/blociq/comms-engine/internal/api/handlers"
	"github.com/blociq/comms-engine/internal/api/middleware"
	"github.com/blociq/comms-engine/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Classification & enrichment
		r.Post("/enrich", h.Enrich)

		// Deterministic template replies
		r.Post("/replies/template", h.TemplateReply)

		// AI drafting engine (ask / generate / transform / classify)
		r.Post("/ai", h.RunEngine)

		// Draft memory
		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", h.ListDrafts)
			r.Post("/cleanup", h.CleanupDrafts)
			r.Route("/{threadId}", func(r chi.Router) {
				r.Get("/", h.GetDraft)
				r.Post("/", h.SaveDraft)
				r.Patch("/", h.UpdateDraft)
				r.Delete("/", h.DeleteDraft)
			})
		})

		// Tone log
		r.Route("/tonelog", func(r chi.Router) {
			r.Post("/", h.LogTone)
			r.Get("/stats", h.ToneStats)
			r.Delete("/", h.ClearToneLog)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "blociq-comms-engine",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "blociq-comms-engine",
		})
	}
}
