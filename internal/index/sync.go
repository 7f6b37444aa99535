package index

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lecternlabs/lectern/internal/checksum"
	"github.com/lecternlabs/lectern/internal/document"
	"github.com/lecternlabs/lectern/internal/store"
)

// Sync walks the workspace and brings the index up to date:
//   - new/changed project records are parsed and reindexed
//   - projects removed from disk are deleted from the index
func Sync(db *DB, st *store.Store, logger *slog.Logger) error {
	names, err := st.ListProjects()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(names))
	for _, name := range names {
		disk[name] = struct{}{}

		data, err := os.ReadFile(st.DocumentPath(name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.Warn("sync: read failed", slog.String("project", name), slog.String("error", err.Error()))
			continue
		}
		if checksums[name] == checksum.Sum(data) {
			continue
		}
		if err := indexProject(db, name, data); err != nil {
			logger.Warn("sync: index failed", slog.String("project", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("project", name))
		}
	}

	// Remove stale entries.
	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if err := db.DeleteProject(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("project", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("project", name))
			}
		}
	}

	return nil
}

// indexProject parses a canonical record and upserts it into the DB.
func indexProject(db *DB, name string, data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return db.DeleteProject(name)
	}
	p, err := document.Parse(data)
	if err != nil {
		return err
	}
	p.Name = name
	return db.ReindexProject(p, checksum.Sum(data))
}
