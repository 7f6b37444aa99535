// Package store persists project documents on local disk: canonical YAML
// records with crash-safe replacement, name validation, legacy layout
// migration, and the capability-token gate on protected projects.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lecternlabs/lectern/internal/apperr"
	"github.com/lecternlabs/lectern/internal/document"
	"github.com/lecternlabs/lectern/internal/lock"
	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/rewrite"
	"github.com/lecternlabs/lectern/internal/templates"
)

const (
	projectsDirName    = "projects"
	attachmentsDirName = "attachments"
	resourcesDirName   = "resources"
	documentFileName   = "project.yaml"
)

// Store owns the local workspace tree:
//
//	<root>/projects/<name>/project.yaml
//	<root>/attachments/<name>/*
//	<root>/resources/<name>/**
//
// Older workspaces kept attachments/resources nested under each project
// folder; those are migrated into the shared category roots on first touch.
type Store struct {
	root   string
	gate   *lock.Gate
	lib    *templates.Library
	logger *slog.Logger
}

// New creates a store rooted at root, creating the workspace directories.
func New(root string, gate *lock.Gate, lib *templates.Library, logger *slog.Logger) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("store: resolve root: %w", err)
	}
	for _, dir := range []string{abs, filepath.Join(abs, projectsDirName), filepath.Join(abs, attachmentsDirName), filepath.Join(abs, resourcesDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: abs, gate: gate, lib: lib, logger: logger}, nil
}

// Root returns the workspace root directory.
func (s *Store) Root() string { return s.root }

// ValidateName rejects names that could escape the workspace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return apperr.ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, string(os.PathSeparator)) {
		return apperr.ErrInvalidName
	}
	return nil
}

// ProjectDir returns the directory holding a project's canonical record.
func (s *Store) ProjectDir(name string) string {
	return filepath.Join(s.root, projectsDirName, name)
}

// DocumentPath returns the canonical record path for a project.
func (s *Store) DocumentPath(name string) string {
	return filepath.Join(s.ProjectDir(name), documentFileName)
}

// AttachmentsDir returns the shared attachments directory for a project.
func (s *Store) AttachmentsDir(name string) string {
	return filepath.Join(s.root, attachmentsDirName, name)
}

// ResourcesDir returns the shared resources directory for a project.
func (s *Store) ResourcesDir(name string) string {
	return filepath.Join(s.root, resourcesDirName, name)
}

// ProjectsRoot returns the directory containing all project folders.
func (s *Store) ProjectsRoot() string {
	return filepath.Join(s.root, projectsDirName)
}

// EnsureProject creates the directory skeleton for a project.
func (s *Store) EnsureProject(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	for _, dir := range []string{s.ProjectDir(name), s.AttachmentsDir(name), s.ResourcesDir(name)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: ensure project %s: %w", name, err)
		}
	}
	return nil
}

// Exists reports whether the project directory is present.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(s.ProjectDir(name))
	return err == nil && info.IsDir()
}

// ListProjects returns the sorted names of every project in the workspace.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.ProjectsRoot())
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Load reads a project's canonical document, synthesizing a default when no
// record exists yet. Legacy document shapes and legacy directory layouts are
// migrated on first touch and the migrated document persisted. Loading a
// password-protected project without a valid capability token fails with
// apperr.ErrLocked.
func (s *Store) Load(name, token string) (*models.Project, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	defaults := s.lib.Default()

	data, err := os.ReadFile(s.DocumentPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			if err := s.EnsureProject(name); err != nil {
				return nil, err
			}
			return document.Default(name, defaults), nil
		}
		return nil, fmt.Errorf("store: read document: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return document.Default(name, defaults), nil
	}

	p, err := document.Parse(data)
	if err != nil {
		return nil, err
	}
	if !s.gate.Valid(name, p.PasswordHash, token) {
		return nil, apperr.ErrLocked
	}

	p.Name = name
	document.Normalize(p, defaults)

	migrated, err := s.migrateLegacyLayout(name, p)
	if err != nil {
		s.logger.Warn("store: legacy layout migration failed",
			slog.String("project", name), slog.String("error", err.Error()))
	}
	if migrated {
		if err := s.Save(name, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Metadata returns the ungated project summary.
func (s *Store) Metadata(name string) (models.Meta, error) {
	if err := ValidateName(name); err != nil {
		return models.Meta{}, err
	}
	if !s.Exists(name) {
		return models.Meta{}, apperr.ErrNotFound
	}
	meta := models.Meta{Name: name}
	data, err := os.ReadFile(s.DocumentPath(name))
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		meta.Pages = 1
		return meta, nil
	}
	p, err := document.Parse(data)
	if err != nil {
		return models.Meta{}, err
	}
	meta.HasPassword = p.Locked()
	meta.RemoteSync = p.RemoteSync
	meta.Pages = len(p.Pages)
	if meta.Pages == 0 {
		meta.Pages = 1
	}
	return meta, nil
}

// PasswordHash reads the stored credential hash without gating. Projects
// without a record or without a password return an empty string.
func (s *Store) PasswordHash(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.DocumentPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("store: read document: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", nil
	}
	p, err := document.Parse(data)
	if err != nil {
		return "", err
	}
	return p.PasswordHash, nil
}

// marshalDocument is swapped out in tests to exercise serialization failures.
var marshalDocument = document.Marshal

// Save normalizes, rewrites markup-embedded asset paths, serializes, and
// atomically replaces the project's canonical record. The serialized form is
// parsed back before the write; if that round-trip fails the save is aborted
// with apperr.ErrSerializationInvalid and the previous record stays intact.
func (s *Store) Save(name string, p *models.Project) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.EnsureProject(name); err != nil {
		return err
	}

	p.Name = name
	document.Normalize(p, s.lib.Default())

	for i := range p.Pages {
		p.Pages[i].Content = rewrite.Content(p.Pages[i].Content)
	}
	p.Template.Header = rewrite.Content(p.Template.Header)
	p.Template.BeforePages = rewrite.Content(p.Template.BeforePages)
	p.Template.Footer = rewrite.Content(p.Template.Footer)

	out, err := marshalDocument(p)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSerializationInvalid, err)
	}
	if _, err := document.Parse(out); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSerializationInvalid, err)
	}

	abs, err := safeJoin(s.root, filepath.Join(projectsDirName, name, documentFileName))
	if err != nil {
		return err
	}
	return writeAtomic(abs, out)
}

// DeleteProject removes the canonical record and the project's attachment
// and resource directories.
func (s *Store) DeleteProject(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !s.Exists(name) {
		return apperr.ErrNotFound
	}
	for _, dir := range []string{s.ProjectDir(name), s.AttachmentsDir(name), s.ResourcesDir(name)} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("store: delete %s: %w", dir, err)
		}
	}
	return nil
}

// RenameProject moves the project's three category directories to a new name
// and rewrites the document's name field.
func (s *Store) RenameProject(oldName, newName string) error {
	if err := ValidateName(oldName); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	if !s.Exists(oldName) {
		return apperr.ErrNotFound
	}
	if s.Exists(newName) {
		return apperr.ErrAlreadyExists
	}
	if err := os.Rename(s.ProjectDir(oldName), s.ProjectDir(newName)); err != nil {
		return fmt.Errorf("store: rename project dir: %w", err)
	}
	for _, pair := range [][2]string{
		{s.AttachmentsDir(oldName), s.AttachmentsDir(newName)},
		{s.ResourcesDir(oldName), s.ResourcesDir(newName)},
	} {
		if _, err := os.Stat(pair[0]); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(pair[0], pair[1]); err != nil {
			return fmt.Errorf("store: rename category dir: %w", err)
		}
	}

	data, err := os.ReadFile(s.DocumentPath(newName))
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	p, err := document.Parse(data)
	if err != nil {
		return err
	}
	return s.Save(newName, p)
}

// migrateLegacyLayout copies files from the old per-project attachments and
// resources subfolders into the shared category roots, absorbing migrated
// resource paths into the document's global resource list. It reports
// whether the document changed and should be re-persisted.
func (s *Store) migrateLegacyLayout(name string, p *models.Project) (bool, error) {
	migrated := false

	legacyAttachments := filepath.Join(s.ProjectDir(name), attachmentsDirName)
	files, err := walkFiles(legacyAttachments)
	if err != nil {
		return migrated, err
	}
	for _, rel := range files {
		if _, err := copyFile(filepath.Join(legacyAttachments, filepath.FromSlash(rel)), filepath.Join(s.AttachmentsDir(name), filepath.FromSlash(rel))); err != nil {
			return migrated, err
		}
	}
	if len(files) > 0 {
		if err := os.RemoveAll(legacyAttachments); err != nil {
			return migrated, err
		}
		s.logger.Info("store: migrated legacy attachments",
			slog.String("project", name), slog.Int("files", len(files)))
	}

	legacyResources := filepath.Join(s.ProjectDir(name), resourcesDirName)
	files, err = walkFiles(legacyResources)
	if err != nil {
		return migrated, err
	}
	for _, rel := range files {
		if _, err := copyFile(filepath.Join(legacyResources, filepath.FromSlash(rel)), filepath.Join(s.ResourcesDir(name), filepath.FromSlash(rel))); err != nil {
			return migrated, err
		}
		if !containsString(p.Resources, rel) {
			p.Resources = append(p.Resources, rel)
			migrated = true
		}
	}
	if len(files) > 0 {
		if err := os.RemoveAll(legacyResources); err != nil {
			return migrated, err
		}
		migrated = true
		s.logger.Info("store: migrated legacy resources",
			slog.String("project", name), slog.Int("files", len(files)))
	}

	return migrated, nil
}

// WriteAttachment stores an uploaded attachment under the project's shared
// attachments directory and returns the sanitized filename.
func (s *Store) WriteAttachment(name, filename string, data []byte) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	clean := document.SanitizeResourcePath(filepath.Base(filename))
	if clean == "" || strings.Contains(clean, "/") {
		return "", apperr.ErrInvalidName
	}
	abs, err := safeJoin(s.root, filepath.Join(attachmentsDirName, name, clean))
	if err != nil {
		return "", err
	}
	if err := writeAtomic(abs, data); err != nil {
		return "", err
	}
	return clean, nil
}

// WriteResource stores a file under the project's shared resources
// directory, creating nested directories as needed.
func (s *Store) WriteResource(name, rel string, data []byte) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	clean := document.SanitizeResourcePath(rel)
	if clean == "" {
		return "", apperr.ErrInvalidName
	}
	abs, err := safeJoin(s.root, filepath.Join(resourcesDirName, name, filepath.FromSlash(clean)))
	if err != nil {
		return "", err
	}
	if err := writeAtomic(abs, data); err != nil {
		return "", err
	}
	return clean, nil
}

// RemoveAttachment deletes one attachment file.
func (s *Store) RemoveAttachment(name, filename string) error {
	return s.removeCategoryFile(attachmentsDirName, name, filepath.Base(filename))
}

// RemoveResource deletes one resource file.
func (s *Store) RemoveResource(name, rel string) error {
	return s.removeCategoryFile(resourcesDirName, name, rel)
}

func (s *Store) removeCategoryFile(category, name, rel string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	clean := document.SanitizeResourcePath(rel)
	if clean == "" {
		return apperr.ErrInvalidName
	}
	abs, err := safeJoin(s.root, filepath.Join(category, name, filepath.FromSlash(clean)))
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("store: remove %s: %w", clean, err)
	}
	return nil
}

// ListCategoryFiles returns the relative paths currently stored for a
// project in one category directory.
func (s *Store) ListCategoryFiles(category, name string) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var dir string
	switch category {
	case attachmentsDirName:
		dir = s.AttachmentsDir(name)
	case resourcesDirName:
		dir = s.ResourcesDir(name)
	default:
		return nil, fmt.Errorf("store: unknown category %q", category)
	}
	return walkFiles(dir)
}

func containsString(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
