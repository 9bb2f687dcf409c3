package server

import (
	"net/http"

	"github.com/agrimentor/agrimentor/internal/api"
	"github.com/agrimentor/agrimentor/internal/api/handlers"
	"github.com/agrimentor/agrimentor/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	AdvisorHandler  *handlers.AdvisorHandler
	FlagHandler     *handlers.FlagHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload-url", cfg.DocumentHandler.InitUpload)
			r.Post("/", cfg.DocumentHandler.CompleteUpload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Post("/{id}/reprocess", cfg.DocumentHandler.Reprocess)
		})

		r.Post("/ask", cfg.AdvisorHandler.Ask)

		r.Route("/flags", func(r chi.Router) {
			r.Get("/", cfg.FlagHandler.ListPending)
			r.Get("/{id}", cfg.FlagHandler.Get)
			r.Post("/{id}/review", cfg.FlagHandler.Review)
		})
	})

	return r
}
