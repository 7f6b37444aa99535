package api

import (
	"github.com/lecternlabs/lectern/internal/index"
	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/projectsvc"
)

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name" example:"talk-2026" validate:"required"`
}

// RenameProjectRequest is the request body for renaming a project.
type RenameProjectRequest struct {
	NewName string `json:"newName" example:"talk-2026-final" validate:"required"`
}

// PasswordRequest carries a password for protect/unlock operations.
// CurrentPassword is an alternative proof to the capability token when
// changing or clearing an existing password.
type PasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	CurrentPassword string `json:"currentPassword,omitempty"`
}

// TokenResponse returns a capability token for a protected project.
type TokenResponse struct {
	Token string `json:"token" validate:"required"`
}

// RemoteSyncRequest toggles bucket mirroring for a project.
type RemoteSyncRequest struct {
	Enabled bool `json:"enabled"`
}

// PullRequest configures a pull run.
type PullRequest struct {
	Overwrite bool `json:"overwrite"`
}

// ProjectDocument is the document response type (aliased from the domain layer).
type ProjectDocument = models.Project

// ProjectMeta is the listing item (aliased from the domain layer).
type ProjectMeta = models.Meta

// UsageEntry is an asset usage record (aliased from the domain layer).
type UsageEntry = projectsvc.UsageEntry

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// ProjectListResponse wraps project listings.
type ProjectListResponse struct {
	Projects []ProjectMeta `json:"projects" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// UsageResponse wraps asset usage records.
type UsageResponse struct {
	Usage []UsageEntry `json:"usage" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful upload.
type AttachmentUploadResponse struct {
	Filename  string `json:"filename" example:"image.png" validate:"required"`
	Size      int64  `json:"size" example:"12345" validate:"required"`
	URL       string `json:"url" example:"/attachments/talk/image.png" validate:"required"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}
