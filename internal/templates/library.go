// Package templates loads shared typesetting templates from a library
// directory. Loaded templates are kept in an explicit per-name cache owned
// by the library instance; callers invalidate entries when template files
// change.
package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lecternlabs/lectern/internal/models"
)

// DefaultTemplateFile is the library entry used when a project has no
// template of its own.
const DefaultTemplateFile = "base_template.yaml"

const fallbackHeader = `\documentclass{beamer}
\usetheme{Madrid}
\usepackage{graphicx}
\usepackage{hyperref}
\usepackage{booktabs}
\usepackage{amsmath, amssymb}
\graphicspath{{.}{images/}{../attachments/}{../}}
\makeatletter
\newcommand{\img}[2][]{
  \IfFileExists{#2}{\includegraphics[#1]{#2}}{
    \typeout{[warn] Missing image #2, using placeholder}
    \includegraphics[#1]{example-image}
  }
}
\makeatother
\setbeameroption{show notes}`

// Fallback is the built-in template used when the library has no usable
// entry on disk.
func Fallback() models.Template {
	return models.Template{
		Header:      fallbackHeader,
		BeforePages: `\begin{document}`,
		Footer:      `\end{document}`,
	}
}

// Library resolves named templates from a directory of YAML files.
type Library struct {
	dir string

	mu    sync.Mutex
	cache map[string]models.Template
}

// NewLibrary creates a library rooted at dir. The directory may be empty or
// absent; lookups then resolve to the built-in fallback.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, cache: make(map[string]models.Template)}
}

// Load returns the named template, reading it from disk at most once until
// the entry is invalidated. Missing or unreadable files resolve to the
// fallback (and are cached as such, so a broken library is not re-read on
// every request).
func (l *Library) Load(name string) models.Template {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.cache[name]; ok {
		return t
	}
	t, err := l.read(name)
	if err != nil {
		t = Fallback()
	}
	l.cache[name] = t
	return t
}

// Default returns the library's default template.
func (l *Library) Default() models.Template {
	return l.Load(DefaultTemplateFile)
}

// Invalidate drops one cached entry so the next Load re-reads the file.
func (l *Library) Invalidate(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, name)
}

// InvalidateAll drops every cached entry.
func (l *Library) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]models.Template)
}

// List returns the YAML template files available in the library directory.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func (l *Library) read(name string) (models.Template, error) {
	if name == "" || name != filepath.Base(name) {
		return models.Template{}, fmt.Errorf("templates: invalid name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return models.Template{}, fmt.Errorf("templates: read %s: %w", name, err)
	}
	var t models.Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return models.Template{}, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	fb := Fallback()
	t.Header = strings.TrimSpace(strings.ReplaceAll(t.Header, "\r\n", "\n"))
	t.BeforePages = strings.TrimSpace(strings.ReplaceAll(t.BeforePages, "\r\n", "\n"))
	t.Footer = strings.TrimSpace(strings.ReplaceAll(t.Footer, "\r\n", "\n"))
	if t.Header == "" {
		t.Header = fb.Header
	}
	if t.BeforePages == "" {
		t.BeforePages = fb.BeforePages
	}
	if t.Footer == "" {
		t.Footer = fb.Footer
	}
	return t, nil
}
