package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lecternlabs/lectern/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error    string   `json:"error" validate:"required"`
	Path     string   `json:"path,omitempty"`
	Contexts []string `json:"contexts,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	var refErr *apperr.ReferenceError
	switch {
	case errors.As(err, &refErr):
		writeJSON(w, http.StatusConflict, errResponse{
			Error:    "still referenced",
			Path:     refErr.Path,
			Contexts: refErr.Contexts,
		})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	case errors.Is(err, apperr.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid name"))
	case errors.Is(err, apperr.ErrLocked):
		writeJSON(w, http.StatusUnauthorized, errorBody("project is locked"))
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody("permission denied"))
	case errors.Is(err, apperr.ErrStillReferenced):
		writeJSON(w, http.StatusConflict, errorBody("still referenced"))
	case errors.Is(err, apperr.ErrSerializationInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("document does not serialize cleanly"))
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody("remote storage unavailable"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
