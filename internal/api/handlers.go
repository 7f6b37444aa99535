package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/projectsvc"
)

// maxDocumentBytes bounds incoming document bodies.
const maxDocumentBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *projectsvc.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *projectsvc.Service) *Handler {
	return &Handler{svc: svc}
}

func projectName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// assetPath extracts the wildcard remainder of the URL, with encoded
// slashes supported (e.g. figs%2Fplot.png).
func assetPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	metas, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if metas == nil {
		metas = []models.Meta{}
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: metas})
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	p, err := h.svc.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{name}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	name := projectName(r)
	p, err := h.svc.Get(r.Context(), name, projectToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SaveProject handles PUT /api/projects/{name}.
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	name := projectName(r)

	var doc models.Project
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	saved, err := h.svc.Save(r.Context(), name, projectToken(r), &doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteProject handles DELETE /api/projects/{name}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), projectName(r), projectToken(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameProject handles POST /api/projects/{name}/rename.
func (h *Handler) RenameProject(w http.ResponseWriter, r *http.Request) {
	var req RenameProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.NewName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("newName is required"))
		return
	}
	if err := h.svc.Rename(r.Context(), projectName(r), req.NewName, projectToken(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMeta handles GET /api/projects/{name}/meta.
func (h *Handler) GetMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.svc.Metadata(r.Context(), projectName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// SetPassword handles POST /api/projects/{name}/password.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("password is required"))
		return
	}
	token, err := h.svc.SetPassword(r.Context(), projectName(r), projectToken(r), req.CurrentPassword, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// ClearPassword handles DELETE /api/projects/{name}/password. The body is
// optional; it may carry currentPassword as proof instead of a token.
func (h *Handler) ClearPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	if err := h.svc.ClearPassword(r.Context(), projectName(r), projectToken(r), req.CurrentPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /api/projects/{name}/unlock.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	token, err := h.svc.Unlock(r.Context(), projectName(r), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Usage handles GET /api/projects/{name}/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.svc.ResourceUsage(r.Context(), projectName(r), projectToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if usage == nil {
		usage = []UsageEntry{}
	}
	writeJSON(w, http.StatusOK, UsageResponse{Usage: usage})
}

// DeleteResource handles DELETE /api/projects/{name}/resources/*.
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	rel := assetPath(r)
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteResource(r.Context(), projectName(r), projectToken(r), rel); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAttachment handles DELETE /api/projects/{name}/attachments/{filename}.
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}
	if err := h.svc.DeleteAttachment(r.Context(), projectName(r), projectToken(r), filename); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRemoteSync handles PUT /api/projects/{name}/remote.
func (h *Handler) SetRemoteSync(w http.ResponseWriter, r *http.Request) {
	var req RemoteSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.SetRemoteSync(r.Context(), projectName(r), projectToken(r), req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncProject handles POST /api/projects/{name}/sync.
func (h *Handler) SyncProject(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SyncProject(r.Context(), projectName(r), projectToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PullProject handles POST /api/projects/{name}/pull.
func (h *Handler) PullProject(w http.ResponseWriter, r *http.Request) {
	var req PullRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	res, err := h.svc.PullProject(r.Context(), projectName(r), projectToken(r), req.Overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DiffProject handles GET /api/projects/{name}/diff.
func (h *Handler) DiffProject(w http.ResponseWriter, r *http.Request) {
	diff, err := h.svc.DiffProject(r.Context(), projectName(r), projectToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, r.URL.Query().Get("project"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
