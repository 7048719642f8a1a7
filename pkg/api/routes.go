package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints.
		r.Get("/health", s.handleHealth)

		// Admin endpoints drive the pipeline.
		r.Route("/admin", func(r chi.Router) {
			if s.cfg.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(
					s.cfg.Server.RateLimit.RequestsPerMinute,
				))
			}

			// Raw run intake.
			r.Post("/runs/import", s.handleImportRuns)
			r.Get("/runs/count", s.handleCountRuns)

			// Stage processors.
			r.Post("/process/{stage}", s.handleProcessStage)

			// Batch passes over derived tables.
			r.Post("/gpu/classify", s.handleClassifyGPUs)
			r.Post("/app-names/normalize", s.handleNormalizeAppNames)
			r.Post("/models/map", s.handleMapModels)

			// Dictionary seeding.
			r.Post("/model-maps", s.handleCreateModelMaps)
			r.Post("/gpu-bases", s.handleCreateGPUBase)
			r.Post("/gpu-maps", s.handleCreateGPUMap)

			// Reporting.
			r.Get("/app-details/analysis", s.handleAnalyzeAppDetails)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
