// Package projectsvc coordinates the store, search index, reference
// tracking, and remote mirroring behind one API surface.
package projectsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/lecternlabs/lectern/internal/apperr"
	"github.com/lecternlabs/lectern/internal/checksum"
	"github.com/lecternlabs/lectern/internal/index"
	"github.com/lecternlabs/lectern/internal/lock"
	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/refs"
	"github.com/lecternlabs/lectern/internal/remote"
	"github.com/lecternlabs/lectern/internal/store"
)

// Publisher receives project change notifications for connected clients.
type Publisher interface {
	PublishProjectEvent(kind, project string)
}

// UsageEntry is the externally visible usage record for one asset.
type UsageEntry struct {
	Path     string   `json:"path"`
	Pages    []int    `json:"pages"`
	Global   bool     `json:"global"`
	Contexts []string `json:"contexts"`
}

// AttachmentResult describes a stored attachment and where it landed.
type AttachmentResult struct {
	Name      string `json:"name"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}

// Service coordinates store and index operations.
type Service struct {
	store  *store.Store
	db     index.ProjectIndex
	gate   *lock.Gate
	engine *remote.Engine
	pub    Publisher
	logger *slog.Logger
}

// NewService creates a project service. engine may be nil when remote
// mirroring is not configured; pub may be nil when no event stream exists.
func NewService(st *store.Store, db index.ProjectIndex, gate *lock.Gate, engine *remote.Engine, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, db: db, gate: gate, engine: engine, pub: pub, logger: logger}
}

func (s *Service) publish(kind, project string) {
	if s.pub != nil {
		s.pub.PublishProjectEvent(kind, project)
	}
}

// List returns metadata for every project in the workspace.
func (s *Service) List(_ context.Context) ([]models.Meta, error) {
	names, err := s.store.ListProjects()
	if err != nil {
		return nil, err
	}
	out := make([]models.Meta, 0, len(names))
	for _, name := range names {
		meta, err := s.store.Metadata(name)
		if err != nil {
			s.logger.Warn("list: metadata failed", slog.String("project", name), slog.String("error", err.Error()))
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Get loads a project's document, enforcing the capability token on
// protected projects.
func (s *Service) Get(_ context.Context, name, token string) (*models.Project, error) {
	return s.store.Load(name, token)
}

// Metadata returns the ungated summary for one project.
func (s *Service) Metadata(_ context.Context, name string) (models.Meta, error) {
	return s.store.Metadata(name)
}

// Create initializes a new project with a default document.
func (s *Service) Create(ctx context.Context, name string) (*models.Project, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if s.store.Exists(name) {
		return nil, apperr.ErrAlreadyExists
	}
	p, err := s.store.Load(name, "")
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(name, p); err != nil {
		return nil, err
	}
	s.reindex(name, p)
	s.publish("created", name)
	return p, nil
}

// Save replaces a project's document. Concurrent saves are last writer
// wins. The stored credential hash and remote mirroring flag always carry
// over from the existing record; clients cannot change them through a save.
func (s *Service) Save(ctx context.Context, name, token string, p *models.Project) (*models.Project, error) {
	existing, err := s.store.Load(name, token)
	if err != nil {
		return nil, err
	}
	p.PasswordHash = existing.PasswordHash
	p.RemoteSync = existing.RemoteSync
	if err := s.store.Save(name, p); err != nil {
		return nil, err
	}
	s.reindex(name, p)
	s.publish("updated", name)
	return p, nil
}

// Rename moves a project to a new name. Remote objects keep their old keys;
// the next sync run uploads under the new name.
func (s *Service) Rename(ctx context.Context, oldName, newName, token string) error {
	if _, err := s.store.Load(oldName, token); err != nil {
		return err
	}
	if err := s.store.RenameProject(oldName, newName); err != nil {
		return err
	}
	if err := s.db.RenameProject(oldName, newName); err != nil {
		s.logger.Warn("rename: index update failed", slog.String("project", newName), slog.String("error", err.Error()))
	}
	s.publish("deleted", oldName)
	s.publish("created", newName)
	return nil
}

// Delete removes a project's local record and files. Remote objects are
// left in place so the bucket remains a recovery copy.
func (s *Service) Delete(ctx context.Context, name, token string) error {
	if _, err := s.store.Load(name, token); err != nil {
		return err
	}
	if err := s.store.DeleteProject(name); err != nil {
		return err
	}
	if err := s.db.DeleteProject(name); err != nil {
		s.logger.Warn("delete: index update failed", slog.String("project", name), slog.String("error", err.Error()))
	}
	s.publish("deleted", name)
	return nil
}

// proveAccess checks that the caller may change a project's password. A
// protected project accepts either a valid capability token or the current
// plaintext password; anything else is ErrPermissionDenied. The returned
// token is valid for the current hash.
func (s *Service) proveAccess(name, token, currentPassword string) (string, error) {
	hash, err := s.store.PasswordHash(name)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return s.gate.Token(name, ""), nil
	}
	if s.gate.Valid(name, hash, token) {
		return token, nil
	}
	if lock.VerifyPassword(hash, currentPassword) {
		return s.gate.Token(name, hash), nil
	}
	return "", fmt.Errorf("%w: current password or valid token required", apperr.ErrPermissionDenied)
}

// SetPassword protects a project with a password. Changing an existing
// password requires proof: a valid token for the current password, or the
// current plaintext password itself. The returned token grants access under
// the new password.
func (s *Service) SetPassword(ctx context.Context, name, token, currentPassword, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", apperr.ErrPermissionDenied)
	}
	proof, err := s.proveAccess(name, token, currentPassword)
	if err != nil {
		return "", err
	}
	p, err := s.store.Load(name, proof)
	if err != nil {
		return "", err
	}
	hash, err := lock.HashPassword(password)
	if err != nil {
		return "", err
	}
	p.PasswordHash = hash
	if err := s.store.Save(name, p); err != nil {
		return "", err
	}
	s.reindex(name, p)
	return s.gate.Token(name, hash), nil
}

// ClearPassword removes a project's password. The same proof as SetPassword
// is required: a valid token or the current plaintext password.
func (s *Service) ClearPassword(ctx context.Context, name, token, currentPassword string) error {
	proof, err := s.proveAccess(name, token, currentPassword)
	if err != nil {
		return err
	}
	p, err := s.store.Load(name, proof)
	if err != nil {
		return err
	}
	if p.PasswordHash == "" {
		return nil
	}
	p.PasswordHash = ""
	if err := s.store.Save(name, p); err != nil {
		return err
	}
	s.reindex(name, p)
	return nil
}

// Unlock verifies a password and issues a capability token for the project.
func (s *Service) Unlock(_ context.Context, name, password string) (string, error) {
	hash, err := s.store.PasswordHash(name)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return s.gate.Token(name, ""), nil
	}
	if !lock.VerifyPassword(hash, password) {
		return "", apperr.ErrPermissionDenied
	}
	return s.gate.Token(name, hash), nil
}

// ResourceUsage reports which pages and document sections cite each asset.
func (s *Service) ResourceUsage(_ context.Context, name, token string) ([]UsageEntry, error) {
	p, err := s.store.Load(name, token)
	if err != nil {
		return nil, err
	}
	usage := refs.Collect(p)
	keys := make([]string, 0, len(usage))
	for key := range usage {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]UsageEntry, 0, len(keys))
	for _, key := range keys {
		u := usage[key]
		out = append(out, UsageEntry{
			Path:     key,
			Pages:    u.PageIndices(),
			Global:   u.Global,
			Contexts: u.Contexts,
		})
	}
	return out, nil
}

// blockingContexts lists the citations that forbid deleting an asset. Bare
// membership in the global resource list is registration, not a citation,
// and never blocks.
func blockingContexts(u *refs.Usage) []string {
	if u == nil {
		return nil
	}
	var out []string
	for _, c := range u.Contexts {
		if c == "global resources" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// DeleteResource removes a resource file from the project, failing with a
// reference error when any page or template section still cites it.
func (s *Service) DeleteResource(ctx context.Context, name, token, rel string) error {
	p, err := s.store.Load(name, token)
	if err != nil {
		return err
	}
	usage := refs.Collect(p)
	if contexts := blockingContexts(refs.Lookup(usage, rel)); len(contexts) > 0 {
		return &apperr.ReferenceError{Path: rel, Contexts: contexts}
	}

	if err := s.store.RemoveResource(name, rel); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	p.Resources = removeString(p.Resources, rel)
	if err := s.store.Save(name, p); err != nil {
		return err
	}
	s.deleteRemote(ctx, name, remote.CategoryResources, rel)
	s.publish("updated", name)
	return nil
}

// DeleteAttachment removes an attachment file, failing with a reference
// error while the document still cites it.
func (s *Service) DeleteAttachment(ctx context.Context, name, token, filename string) error {
	p, err := s.store.Load(name, token)
	if err != nil {
		return err
	}
	usage := refs.Collect(p)
	if contexts := blockingContexts(refs.Lookup(usage, filename)); len(contexts) > 0 {
		return &apperr.ReferenceError{Path: filename, Contexts: contexts}
	}

	if err := s.store.RemoveAttachment(name, filename); err != nil {
		return err
	}
	s.deleteRemote(ctx, name, remote.CategoryAttachments, filepath.Base(filename))
	s.publish("updated", name)
	return nil
}

// StoreAttachment lands an uploaded file locally and mirrors it to the
// bucket when the project opts in. Remote failure never fails the upload.
func (s *Service) StoreAttachment(ctx context.Context, name, token, filename string, data []byte) (AttachmentResult, error) {
	p, err := s.store.Load(name, token)
	if err != nil {
		return AttachmentResult{}, err
	}
	stored, err := s.store.WriteAttachment(name, filename, data)
	if err != nil {
		return AttachmentResult{}, err
	}
	res := AttachmentResult{Name: stored}
	if p.RemoteSync && s.engine != nil {
		local := filepath.Join(s.store.AttachmentsDir(name), stored)
		url, err := s.engine.UploadFile(ctx, local, name, remote.CategoryAttachments, stored)
		if err != nil {
			s.logger.Warn("attachment: remote upload failed",
				slog.String("project", name), slog.String("file", stored),
				slog.String("error", err.Error()))
		} else {
			res.RemoteURL = url
		}
	}
	s.publish("updated", name)
	return res, nil
}

// StoreResource lands a resource file locally, registers it in the
// document, and mirrors it when the project opts in.
func (s *Service) StoreResource(ctx context.Context, name, token, rel string, data []byte) (AttachmentResult, error) {
	p, err := s.store.Load(name, token)
	if err != nil {
		return AttachmentResult{}, err
	}
	stored, err := s.store.WriteResource(name, rel, data)
	if err != nil {
		return AttachmentResult{}, err
	}
	if !containsString(p.Resources, stored) {
		p.Resources = append(p.Resources, stored)
		if err := s.store.Save(name, p); err != nil {
			return AttachmentResult{}, err
		}
	}
	res := AttachmentResult{Name: stored}
	if p.RemoteSync && s.engine != nil {
		local := filepath.Join(s.store.ResourcesDir(name), filepath.FromSlash(stored))
		url, err := s.engine.UploadFile(ctx, local, name, remote.CategoryResources, stored)
		if err != nil {
			s.logger.Warn("resource: remote upload failed",
				slog.String("project", name), slog.String("file", stored),
				slog.String("error", err.Error()))
		} else {
			res.RemoteURL = url
		}
	}
	s.publish("updated", name)
	return res, nil
}

// SetRemoteSync toggles bucket mirroring for a project. Enabling requires a
// configured remote.
func (s *Service) SetRemoteSync(ctx context.Context, name, token string, enabled bool) error {
	if enabled && s.engine == nil {
		return fmt.Errorf("%w: no remote configured", apperr.ErrRemoteUnavailable)
	}
	p, err := s.store.Load(name, token)
	if err != nil {
		return err
	}
	if p.RemoteSync == enabled {
		return nil
	}
	p.RemoteSync = enabled
	if err := s.store.Save(name, p); err != nil {
		return err
	}
	s.reindex(name, p)
	return nil
}

// ProjectSyncResult aggregates per-category sync outcomes.
type ProjectSyncResult struct {
	Attachments remote.SyncResult `json:"attachments"`
	Resources   remote.SyncResult `json:"resources"`
}

// SyncProject pushes a project's attachment and resource directories to the
// bucket, pruning remote objects with no local counterpart.
func (s *Service) SyncProject(ctx context.Context, name, token string) (ProjectSyncResult, error) {
	var out ProjectSyncResult
	p, err := s.store.Load(name, token)
	if err != nil {
		return out, err
	}
	if s.engine == nil {
		return out, fmt.Errorf("%w: no remote configured", apperr.ErrRemoteUnavailable)
	}
	if !p.RemoteSync {
		return out, fmt.Errorf("%w: mirroring disabled for project", apperr.ErrPermissionDenied)
	}
	out.Attachments, err = s.engine.SyncDirectory(ctx, s.store.AttachmentsDir(name), name, remote.CategoryAttachments, true)
	if err != nil {
		return out, err
	}
	out.Resources, err = s.engine.SyncDirectory(ctx, s.store.ResourcesDir(name), name, remote.CategoryResources, true)
	return out, err
}

// PullProject downloads a project's bucket objects into the workspace.
func (s *Service) PullProject(ctx context.Context, name, token string, overwrite bool) (ProjectSyncResult, error) {
	var out ProjectSyncResult
	if _, err := s.store.Load(name, token); err != nil {
		return out, err
	}
	if s.engine == nil {
		return out, fmt.Errorf("%w: no remote configured", apperr.ErrRemoteUnavailable)
	}
	var err error
	out.Attachments, err = s.engine.PullDirectory(ctx, s.store.AttachmentsDir(name), name, remote.CategoryAttachments, overwrite, false)
	if err != nil {
		return out, err
	}
	out.Resources, err = s.engine.PullDirectory(ctx, s.store.ResourcesDir(name), name, remote.CategoryResources, overwrite, false)
	return out, err
}

// ProjectDiff aggregates per-category diffs.
type ProjectDiff struct {
	Attachments remote.DirDiff `json:"attachments"`
	Resources   remote.DirDiff `json:"resources"`
}

// DiffProject compares the local tree against the bucket without
// transferring anything.
func (s *Service) DiffProject(ctx context.Context, name, token string) (ProjectDiff, error) {
	var out ProjectDiff
	if _, err := s.store.Load(name, token); err != nil {
		return out, err
	}
	if s.engine == nil {
		return out, fmt.Errorf("%w: no remote configured", apperr.ErrRemoteUnavailable)
	}
	var err error
	out.Attachments, err = s.engine.DiffDirectory(ctx, s.store.AttachmentsDir(name), name, remote.CategoryAttachments)
	if err != nil {
		return out, err
	}
	out.Resources, err = s.engine.DiffDirectory(ctx, s.store.ResourcesDir(name), name, remote.CategoryResources)
	return out, err
}

// Search queries indexed page content, optionally scoped to one project.
func (s *Service) Search(_ context.Context, query, project string, limit int) ([]index.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	return s.db.Search(query, project, limit)
}

// reindex updates the search index after a document change. Indexing is
// best effort; the watcher and periodic sync repair misses.
func (s *Service) reindex(name string, p *models.Project) {
	sum, err := s.documentChecksum(name)
	if err != nil {
		s.logger.Warn("reindex: checksum failed", slog.String("project", name), slog.String("error", err.Error()))
		return
	}
	if err := s.db.ReindexProject(p, sum); err != nil {
		s.logger.Warn("reindex failed", slog.String("project", name), slog.String("error", err.Error()))
	}
}

func (s *Service) documentChecksum(name string) (string, error) {
	data, err := os.ReadFile(s.store.DocumentPath(name))
	if err != nil {
		return "", err
	}
	return checksum.Sum(data), nil
}

func (s *Service) deleteRemote(ctx context.Context, name string, category remote.Category, rel string) {
	if s.engine == nil {
		return
	}
	if err := s.engine.DeleteFile(ctx, name, category, rel); err != nil {
		s.logger.Warn("remote delete failed",
			slog.String("project", name), slog.String("path", rel),
			slog.String("error", err.Error()))
	}
}

func removeString(items []string, v string) []string {
	out := items[:0]
	for _, item := range items {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

func containsString(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
