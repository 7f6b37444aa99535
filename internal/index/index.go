package index

import "github.com/lecternlabs/lectern/internal/models"

// ProjectIndex defines the interface for project indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ProjectIndex interface {
	ReindexProject(p *models.Project, checksum string) error
	DeleteProject(name string) error
	RenameProject(oldName, newName string) error
	GetChecksum(name string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query, project string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies ProjectIndex at compile time.
var _ ProjectIndex = (*DB)(nil)
