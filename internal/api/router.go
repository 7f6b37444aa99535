package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lecternlabs/lectern/internal/projectsvc"
	"github.com/lecternlabs/lectern/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *projectsvc.Service, st *store.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(svc, st)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Project CRUD.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{name}", h.GetProject)
	r.Put("/projects/{name}", h.SaveProject)
	r.Delete("/projects/{name}", h.DeleteProject)
	r.Post("/projects/{name}/rename", h.RenameProject)
	r.Get("/projects/{name}/meta", h.GetMeta)

	// Password protection.
	r.Post("/projects/{name}/password", h.SetPassword)
	r.Delete("/projects/{name}/password", h.ClearPassword)
	r.Post("/projects/{name}/unlock", h.Unlock)

	// Asset reference tracking and files.
	r.Get("/projects/{name}/usage", h.Usage)
	r.Post("/projects/{name}/attachments", ah.UploadAttachment)
	r.Delete("/projects/{name}/attachments/{filename}", h.DeleteAttachment)
	r.Post("/projects/{name}/resources", ah.UploadResource)
	r.Delete("/projects/{name}/resources/*", h.DeleteResource)

	// Remote mirroring.
	r.Put("/projects/{name}/remote", h.SetRemoteSync)
	r.Post("/projects/{name}/sync", h.SyncProject)
	r.Post("/projects/{name}/pull", h.PullProject)
	r.Get("/projects/{name}/diff", h.DiffProject)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// NewFileRouter serves attachment and resource files outside the API auth
// group, the way published decks consume them.
func NewFileRouter(svc *projectsvc.Service, st *store.Store) chi.Router {
	ah := NewAssetHandler(svc, st)
	r := chi.NewRouter()
	r.Get("/attachments/{name}/{filename}", ah.ServeAttachment)
	r.Get("/resources/{name}/*", ah.ServeResource)
	return r
}
