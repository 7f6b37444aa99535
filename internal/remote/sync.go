package remote

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lecternlabs/lectern/internal/checksum"
)

// uploadConcurrency bounds parallel transfers per sync run.
const uploadConcurrency = 4

// Entry describes one remote object, keyed by its workspace-relative path.
type Entry struct {
	URL  string
	ETag string
	Size int64
}

// SyncResult summarizes one sync or pull run.
type SyncResult struct {
	Uploaded      []string
	Downloaded    []string
	Removed       []string
	Failed        []string
	LegacyCleaned int
}

// FetchResult reports the outcome of a single-object fetch.
type FetchResult struct {
	Found bool
	Key   string
}

// Engine pushes and pulls one category directory at a time, converging the
// bucket on the local tree or the other way around.
type Engine struct {
	store  ObjectStore
	creds  Credentials
	logger *slog.Logger
}

// NewEngine wires a sync engine over an object store.
func NewEngine(store ObjectStore, creds Credentials, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, creds: creds, logger: logger}
}

// List returns the remote entries for one project category, keyed by
// workspace-relative path.
func (e *Engine) List(ctx context.Context, project string, category Category) (map[string]Entry, error) {
	objs, err := e.store.List(ctx, CategoryPrefix(e.creds.Prefix, project, category))
	if err != nil {
		return nil, err
	}
	out := make(map[string]Entry, len(objs))
	for _, obj := range objs {
		rel, ok := RelFromKey(e.creds.Prefix, project, category, obj.Key)
		if !ok {
			continue
		}
		out[rel] = Entry{
			URL:  e.creds.PublicURL(obj.Key),
			ETag: obj.ETag,
			Size: obj.Size,
		}
	}
	return out, nil
}

// DirDiff lists what a sync run would transfer.
type DirDiff struct {
	// OnlyLocal are local files with no remote counterpart yet.
	OnlyLocal []string `json:"onlyLocal"`
	// Differing are files present on both sides with differing content.
	Differing []string `json:"differing"`
	// RemoteOnly are remote objects with no local counterpart.
	RemoteOnly []string `json:"remoteOnly"`
	// InSync are files identical on both sides.
	InSync []string `json:"inSync"`
}

// uploads returns the files a sync run would transfer.
func (d DirDiff) uploads() []string {
	out := make([]string, 0, len(d.OnlyLocal)+len(d.Differing))
	out = append(out, d.OnlyLocal...)
	out = append(out, d.Differing...)
	return out
}

// DiffDirectory compares a local directory against the remote category
// without transferring anything.
func (e *Engine) DiffDirectory(ctx context.Context, localDir, project string, category Category) (DirDiff, error) {
	var diff DirDiff
	remote, err := e.List(ctx, project, category)
	if err != nil {
		return diff, err
	}
	local, err := localFiles(localDir)
	if err != nil {
		return diff, err
	}
	for _, rel := range local {
		entry, ok := remote[rel]
		switch {
		case !ok:
			diff.OnlyLocal = append(diff.OnlyLocal, rel)
		case e.matches(filepath.Join(localDir, filepath.FromSlash(rel)), entry):
			diff.InSync = append(diff.InSync, rel)
		default:
			diff.Differing = append(diff.Differing, rel)
		}
		delete(remote, rel)
	}
	for rel := range remote {
		diff.RemoteOnly = append(diff.RemoteOnly, rel)
	}
	sort.Strings(diff.OnlyLocal)
	sort.Strings(diff.Differing)
	sort.Strings(diff.RemoteOnly)
	sort.Strings(diff.InSync)
	return diff, nil
}

// SyncDirectory converges the remote category on the local directory.
// Unchanged files are skipped by checksum, changed and missing files are
// uploaded with bounded concurrency, and when prune is set remote objects
// without a local counterpart are deleted. Legacy-layout copies of uploaded
// files are removed best effort.
func (e *Engine) SyncDirectory(ctx context.Context, localDir, project string, category Category, prune bool) (SyncResult, error) {
	var res SyncResult
	diff, err := e.DiffDirectory(ctx, localDir, project, category)
	if err != nil {
		return res, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, rel := range diff.uploads() {
		g.Go(func() error {
			key := ObjectKey(e.creds.Prefix, project, category, rel)
			err := e.store.Put(gctx, key, filepath.Join(localDir, filepath.FromSlash(rel)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, rel)
				e.logger.Warn("remote: upload failed",
					slog.String("project", project), slog.String("path", rel),
					slog.String("error", err.Error()))
				return nil
			}
			res.Uploaded = append(res.Uploaded, rel)
			res.LegacyCleaned += e.cleanLegacy(gctx, project, category, rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if prune {
		for _, rel := range diff.RemoteOnly {
			key := ObjectKey(e.creds.Prefix, project, category, rel)
			if err := e.store.Delete(ctx, key); err != nil {
				res.Failed = append(res.Failed, rel)
				continue
			}
			res.Removed = append(res.Removed, rel)
		}
	}

	sort.Strings(res.Uploaded)
	sort.Strings(res.Removed)
	sort.Strings(res.Failed)
	return res, nil
}

// PullDirectory converges the local directory on the remote category. With
// overwrite set, local files that differ from their remote counterpart are
// replaced; with deleteLocalExtras set, local files absent remotely are
// removed.
func (e *Engine) PullDirectory(ctx context.Context, localDir, project string, category Category, overwrite, deleteLocalExtras bool) (SyncResult, error) {
	var res SyncResult
	remote, err := e.List(ctx, project, category)
	if err != nil {
		return res, err
	}
	local, err := localFiles(localDir)
	if err != nil {
		return res, err
	}
	localSet := make(map[string]struct{}, len(local))
	for _, rel := range local {
		localSet[rel] = struct{}{}
	}

	for rel, entry := range remote {
		abs := filepath.Join(localDir, filepath.FromSlash(rel))
		if _, exists := localSet[rel]; exists {
			if !overwrite || e.matches(abs, entry) {
				continue
			}
		}
		key := ObjectKey(e.creds.Prefix, project, category, rel)
		found, err := e.store.Get(ctx, key, abs)
		if err != nil || !found {
			res.Failed = append(res.Failed, rel)
			continue
		}
		res.Downloaded = append(res.Downloaded, rel)
	}

	if deleteLocalExtras {
		for _, rel := range local {
			if _, ok := remote[rel]; ok {
				continue
			}
			if err := os.Remove(filepath.Join(localDir, filepath.FromSlash(rel))); err == nil {
				res.Removed = append(res.Removed, rel)
			}
		}
	}

	sort.Strings(res.Downloaded)
	sort.Strings(res.Removed)
	sort.Strings(res.Failed)
	return res, nil
}

// UploadFile pushes one file and returns its public URL.
func (e *Engine) UploadFile(ctx context.Context, localPath, project string, category Category, rel string) (string, error) {
	key := ObjectKey(e.creds.Prefix, project, category, rel)
	if err := e.store.Put(ctx, key, localPath); err != nil {
		return "", err
	}
	e.cleanLegacy(ctx, project, category, rel)
	return e.creds.PublicURL(key), nil
}

// PullFile fetches one file, probing legacy key shapes when the current key
// is absent.
func (e *Engine) PullFile(ctx context.Context, localPath, project string, category Category, rel string) (FetchResult, error) {
	key := ObjectKey(e.creds.Prefix, project, category, rel)
	found, err := e.store.Get(ctx, key, localPath)
	if err != nil {
		return FetchResult{}, err
	}
	if found {
		return FetchResult{Found: true, Key: key}, nil
	}
	for _, legacy := range LegacyObjectKeys(e.creds.Prefix, project, category, rel) {
		found, err := e.store.Get(ctx, legacy, localPath)
		if err != nil {
			return FetchResult{}, err
		}
		if found {
			return FetchResult{Found: true, Key: legacy}, nil
		}
	}
	return FetchResult{}, nil
}

// DeleteFile removes one file under every key shape it may live at.
func (e *Engine) DeleteFile(ctx context.Context, project string, category Category, rel string) error {
	keys := append([]string{ObjectKey(e.creds.Prefix, project, category, rel)},
		LegacyObjectKeys(e.creds.Prefix, project, category, rel)...)
	for _, key := range keys {
		if err := e.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// PublicURL returns the browse URL for a project file under the current
// key scheme.
func (e *Engine) PublicURL(project string, category Category, rel string) string {
	return e.creds.PublicURL(ObjectKey(e.creds.Prefix, project, category, rel))
}

// cleanLegacy removes superseded copies of rel under old key shapes,
// returning how many were deleted. Failures are logged and ignored.
func (e *Engine) cleanLegacy(ctx context.Context, project string, category Category, rel string) int {
	cleaned := 0
	for _, legacy := range LegacyObjectKeys(e.creds.Prefix, project, category, rel) {
		if err := e.store.Delete(ctx, legacy); err != nil {
			e.logger.Debug("remote: legacy cleanup failed",
				slog.String("key", legacy), slog.String("error", err.Error()))
			continue
		}
		cleaned++
	}
	return cleaned
}

// matches reports whether a local file already matches a remote entry.
// Multipart uploads carry composite tags that cannot be recomputed locally,
// so those fall back to a size comparison.
func (e *Engine) matches(localPath string, entry Entry) bool {
	info, err := os.Stat(localPath)
	if err != nil {
		return false
	}
	etag := strings.Trim(strings.ToLower(entry.ETag), `"`)
	if strings.Contains(etag, "-") {
		return info.Size() == entry.Size
	}
	sum, err := checksum.ETagFile(localPath)
	if err != nil {
		return false
	}
	return strings.ToLower(sum) == etag
}

func localFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
