package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arne-cl/rstWeb/internal/lifecycle"
)

// RouterConfig holds the optional parts of the API router.
type RouterConfig struct {
	// AllowedOrigin is sent as Access-Control-Allow-Origin; empty disables CORS headers.
	AllowedOrigin string
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes. It is meant to be
// mounted under /api.
func NewRouter(m *lifecycle.Manager, cfg RouterConfig) chi.Router {
	h := NewHandler(m)

	r := chi.NewRouter()
	r.Use(CORSMiddleware(cfg.AllowedOrigin))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/", h.Index)

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Delete("/projects", h.DeleteAllProjects)
	r.Get("/projects/{project}", h.ListDocuments)
	r.Post("/projects/{project}", h.CreateProject)
	r.Delete("/projects/{project}", h.DeleteProject)

	// Documents.
	r.Get("/documents", h.ListAllDocuments)
	r.Get("/documents/{project}", h.ListDocuments)
	r.Get("/documents/{project}/{file}", h.GetDocument)
	r.Post("/documents/{project}/{file}", h.AddDocument)
	r.Put("/documents/{project}/{file}", h.UpdateDocument)
	r.Delete("/documents/{project}/{file}", h.DeleteDocument)

	// Stateless conversion.
	r.Post("/convert", h.Convert)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
