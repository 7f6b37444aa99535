// Package apperr defines the sentinel errors shared across Lectern services.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")

	// ErrInvalidName rejects project names or relative paths containing
	// separators, "." or "..".
	ErrInvalidName = errors.New("invalid name")

	// ErrLocked is returned when a password-protected project is loaded
	// without a valid capability token.
	ErrLocked = errors.New("project locked")

	// ErrPermissionDenied is returned when a password change lacks proof
	// of the current password or a valid token.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStillReferenced blocks deletion of an asset that is still cited
	// by the document.
	ErrStillReferenced = errors.New("still referenced")

	// ErrSerializationInvalid aborts a save whose serialized form failed
	// round-trip verification; the prior on-disk document is untouched.
	ErrSerializationInvalid = errors.New("serialization invalid")

	// ErrRemoteUnavailable marks sync operations that cannot run because
	// remote credentials are absent or the remote call failed.
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// ReferenceError carries the document locations that still cite an asset.
type ReferenceError struct {
	Path     string
	Contexts []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s: %s referenced by %s", ErrStillReferenced, e.Path, strings.Join(e.Contexts, ", "))
}

func (e *ReferenceError) Unwrap() error { return ErrStillReferenced }
