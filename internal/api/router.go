package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ohinlabs/hippo/internal/docstore"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Basic credentials are enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
//
// Server info, application listing/creation and token creation are public,
// mirroring the bootstrap flow: an application and its first token must be
// obtainable before any credentials exist.
func NewRouter(store *docstore.Store, authEnabled bool, sseHandler http.Handler) chi.Router {
	h := NewHandler(store)

	r := chi.NewRouter()

	r.Get("/", h.ServerInfo)
	r.Get("/apps", h.ListApplications)
	r.Post("/apps/new", h.CreateApplication)
	r.Post("/tokens/new", h.CreateToken)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(store, authEnabled))

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}

		r.With(RequireWriteable).Delete("/apps/delete", h.DeleteApplication)
		r.With(RequireWriteable).Delete("/tokens/delete", h.DeleteToken)

		// Databases. Paths travel as a single URL-encoded segment.
		r.With(RequireWriteable).Post("/create_db", h.CreateDatabase)
		r.Get("/dbs/{db}", h.ListDatabases)
		r.Get("/{db}", h.ListDocuments)
		r.With(RequireWriteable).Delete("/{db}", h.DeleteDatabase)

		// Documents.
		r.With(RequireWriteable).Post("/{db}", h.CreateDocument)
		r.Get("/{db}/{document}", h.ReadDocument)
		r.Get("/{db}/{document}/exists", h.DocumentExists)
		r.With(RequireWriteable).Put("/{db}/{document}", h.UpdateDocument)
		r.With(RequireWriteable).Delete("/{db}/{document}", h.DeleteDocument)
	})

	return r
}
