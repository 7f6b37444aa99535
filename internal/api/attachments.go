package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/lecternlabs/lectern/internal/projectsvc"
	"github.com/lecternlabs/lectern/internal/store"
)

// maxUploadBytes bounds a single uploaded file.
const maxUploadBytes = 50 << 20 // 50 MB

// AssetHandler accepts and serves per-project attachment and resource files.
type AssetHandler struct {
	svc   *projectsvc.Service
	store *store.Store
}

// NewAssetHandler creates a handler over the workspace store.
func NewAssetHandler(svc *projectsvc.Service, st *store.Store) *AssetHandler {
	return &AssetHandler{svc: svc, store: st}
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return "", nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read upload"))
		return "", nil, false
	}
	return header.Filename, data, true
}

// UploadAttachment handles POST /api/projects/{name}/attachments
// (multipart/form-data, field "file").
func (h *AssetHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	name := projectName(r)
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.svc.StoreAttachment(r.Context(), name, projectToken(r), filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename:  res.Name,
		Size:      int64(len(data)),
		URL:       "/attachments/" + name + "/" + res.Name,
		RemoteURL: res.RemoteURL,
	})
}

// UploadResource handles POST /api/projects/{name}/resources. The optional
// "path" form field places the file under a relative directory.
func (h *AssetHandler) UploadResource(w http.ResponseWriter, r *http.Request) {
	name := projectName(r)
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	rel := filename
	if p := r.FormValue("path"); p != "" {
		rel = p + "/" + filename
	}
	res, err := h.svc.StoreResource(r.Context(), name, projectToken(r), rel, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename:  res.Name,
		Size:      int64(len(data)),
		URL:       "/resources/" + name + "/" + res.Name,
		RemoteURL: res.RemoteURL,
	})
}

// ServeAttachment handles GET /attachments/{name}/{filename}.
func (h *AssetHandler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	name := projectName(r)
	filename := chi.URLParam(r, "filename")
	if store.ValidateName(name) != nil || filename == "" || filename != filepath.Base(filename) {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	abs := filepath.Join(h.store.AttachmentsDir(name), filename)
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// ServeResource handles GET /resources/{name}/*.
func (h *AssetHandler) ServeResource(w http.ResponseWriter, r *http.Request) {
	name := projectName(r)
	rel := assetPath(r)
	if store.ValidateName(name) != nil || rel == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	abs := filepath.Join(h.store.ResourcesDir(name), filepath.FromSlash(rel))
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
