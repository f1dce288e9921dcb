package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maxpert/stride/telemetry"
)

// NewRouter builds the admin API router. authToken empty means open access.
func NewRouter(handlers *AdminHandlers, authToken string) http.Handler {
	r := chi.NewRouter()

	r.Route("/indexers", func(r chi.Router) {
		r.Use(authMiddleware(authToken))
		r.Get("/", handlers.handleListIndexers)
		r.Get("/{name}", handlers.handleIndexerStatus)
		r.Get("/{name}/events", handlers.handleEvents)
		r.Post("/{name}/cleanup", handlers.handleCleanup)
		r.Post("/{name}/rollback", handlers.handleRollback)
		r.Post("/{name}/reset", handlers.handleReset)
	})

	if metrics := telemetry.GetMetricsHandler(); metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}
