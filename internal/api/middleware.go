// Package api implements the Lectern REST API using chi.
package api

import (
	"net/http"
	"strings"
)

// projectTokenHeader carries the per-project capability token issued by
// the unlock endpoint.
const projectTokenHeader = "X-Project-Token"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// projectToken extracts the per-project capability token from the request.
// The header wins; a query parameter is accepted for links that cannot
// carry headers (file downloads, EventSource).
func projectToken(r *http.Request) string {
	if t := r.Header.Get(projectTokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}
