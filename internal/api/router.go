package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avdeev/notevault/internal/sse"
	"github.com/avdeev/notevault/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group and
// receives change notifications from the mutating handlers.
func NewRouter(svc *storage.Service, authEnabled bool, token string, events *sse.Broker) chi.Router {
	h := NewHandler(svc, events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Directory navigation.
	r.Get("/directory", h.GetDirectory)
	r.Get("/directory/parent", h.GetParent)
	r.Get("/directory/folders", h.GetFolders)

	// Notes CRUD.
	r.Get("/notes/{filename}", h.GetNote)
	r.Put("/notes/{filename}", h.PutNote)
	r.Delete("/notes/{filename}", h.DeleteNote)

	// Display preferences.
	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.PutPreferences)

	// Storage backend management.
	r.Get("/storage", h.GetStorage)
	r.Put("/storage", h.PutStorage)
	r.Delete("/storage", h.ResetStorage)
	r.Post("/storage/pick", h.PickStorage)

	// SSE endpoint (protected by same auth middleware).
	if events != nil {
		r.Method(http.MethodGet, "/events", events)
	}

	return r
}
