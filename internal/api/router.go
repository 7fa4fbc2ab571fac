// Package api serves the memory engine over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fulvian/devstream/internal/assembler"
	"github.com/fulvian/devstream/internal/config"
	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/internal/searcher"
	"github.com/fulvian/devstream/internal/storage"
)

// Deps are the components the HTTP handlers call into
type Deps struct {
	Store     storage.Storage
	Searcher  *searcher.Searcher
	Assembler *assembler.Assembler
	Memory    *memory.Service
	Config    *config.Config
	Provider  string
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(deps Deps, apiKey string, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	logger = logger.With().Str("component", "http").Logger()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(deps.Store, deps.Provider)
	memoryH := NewMemoryHandler(deps.Memory)
	searchH := NewSearchHandler(deps.Searcher, deps.Assembler, deps.Store, deps.Config)

	r.Get("/health", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/search", searchH.Search)
		r.Post("/context", searchH.Context)
		r.Get("/stats", searchH.Stats)

		r.Route("/memories", func(r chi.Router) {
			r.Get("/", memoryH.List)
			r.Post("/", memoryH.Store)
			r.Get("/{id}", memoryH.Get)
			r.Post("/{id}/archive", memoryH.Archive)
		})
	})

	return r
}
