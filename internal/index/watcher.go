package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lecternlabs/lectern/internal/store"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, project string)

// documentFileName mirrors the store's canonical record name.
const documentFileName = "project.yaml"

// Watch starts an fsnotify watcher on the projects root and processes
// change events until ctx is cancelled. It calls cb (if non-nil) after each
// successful index mutation.
//
// Project directories created at runtime are automatically added to the
// watch list. Rename events trigger a reconciliation pass that removes
// stale index entries whose records no longer exist on disk.
func Watch(ctx context.Context, db *DB, st *store.Store, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := st.ProjectsRoot()
	if err := addProjectDirs(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, st, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New project directories join the watch list so their
			// record writes are seen.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if filepath.Dir(absPath) == root {
						if addErr := w.Add(absPath); addErr != nil {
							logger.Warn("watcher: add new project dir failed",
								slog.String("path", absPath),
								slog.String("error", addErr.Error()))
						} else {
							logger.Debug("watcher: watching new project", slog.String("path", absPath))
						}
						indexIfPresent(db, st, filepath.Base(absPath), "created", logger, cb)
					}
					continue
				}
			}

			// Only canonical record writes matter from here on.
			if filepath.Base(absPath) != documentFileName {
				continue
			}
			project := filepath.Base(filepath.Dir(absPath))

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				indexIfPresent(db, st, project, kind, logger, cb)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteProject(project); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("project", project), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("project", project))
				if cb != nil {
					cb("deleted", project)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event. Drop the
				// old entry now and schedule a short reconciliation
				// pass to catch stragglers.
				if delErr := db.DeleteProject(project); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("project", project), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("project", project))
					if cb != nil {
						cb("deleted", project)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexIfPresent reads and indexes one project's record if it exists.
func indexIfPresent(db *DB, st *store.Store, project, kind string, logger *slog.Logger, cb EventCallback) {
	data, err := os.ReadFile(st.DocumentPath(project))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("watcher: read failed", slog.String("project", project), slog.String("error", err.Error()))
		}
		return
	}
	if err := indexProject(db, project, data); err != nil {
		logger.Warn("watcher: index failed", slog.String("project", project), slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: indexed", slog.String("project", project), slog.String("op", kind))
	if cb != nil {
		cb(kind, project)
	}
}

// reconcile does a lightweight sync using batch lookups: removes index
// entries whose records are gone and indexes records missing or changed on
// disk.
func reconcile(db *DB, st *store.Store, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	names, err := st.ListProjects()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(names))
	for _, name := range names {
		disk[name] = struct{}{}
	}

	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if delErr := db.DeleteProject(name); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("project", name))
				if cb != nil {
					cb("deleted", name)
				}
			}
		}
	}

	for _, name := range names {
		if _, ok := checksums[name]; ok {
			continue
		}
		indexIfPresent(db, st, name, "created", logger, cb)
	}
}

// addProjectDirs adds the projects root and each project directory to the
// watcher.
func addProjectDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := w.Add(filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
