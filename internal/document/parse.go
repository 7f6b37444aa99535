package document

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lecternlabs/lectern/internal/models"
)

// rawDocument is the union of every on-disk shape the store has ever
// written. It exists only at the parse boundary: Parse resolves it into
// models.Project and nothing downstream sees the union again.
type rawDocument struct {
	Project          string                   `yaml:"project"`
	Pages            []yaml.Node              `yaml:"pages"`
	Notes            []string                 `yaml:"notes"`    // legacy: per-index speaker scripts
	PageBib          [][]string               `yaml:"page_bib"` // legacy: per-index bib lists
	Template         yaml.Node                `yaml:"template"`
	MarkdownTemplate *models.MarkdownTemplate `yaml:"markdownTemplate"`
	Resources        []string                 `yaml:"resources"`
	Bib              []string                 `yaml:"bib"`
	PasswordHash     string                   `yaml:"passwordHash"`
	RemoteSync       bool                     `yaml:"remoteSync"`
}

// Parse decodes a project document, transparently migrating legacy shapes:
// pages stored as bare strings gain the five-field shape, with the old
// top-level notes/page_bib arrays folded into per-page script/bib fields.
// The result is not yet normalized; callers run Normalize afterwards.
func Parse(data []byte) (*models.Project, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}

	p := &models.Project{
		Name:             raw.Project,
		MarkdownTemplate: raw.MarkdownTemplate,
		Resources:        raw.Resources,
		Bib:              raw.Bib,
		PasswordHash:     raw.PasswordHash,
		RemoteSync:       raw.RemoteSync,
	}

	for i, node := range raw.Pages {
		page, err := decodePage(node, i, raw.Notes, raw.PageBib)
		if err != nil {
			return nil, err
		}
		p.Pages = append(p.Pages, page)
	}

	switch raw.Template.Kind {
	case yaml.ScalarNode:
		// Legacy: template stored as a single header string.
		var header string
		if err := raw.Template.Decode(&header); err != nil {
			return nil, fmt.Errorf("document: parse template: %w", err)
		}
		p.Template = models.Template{Header: header}
	case yaml.MappingNode:
		if err := raw.Template.Decode(&p.Template); err != nil {
			return nil, fmt.Errorf("document: parse template: %w", err)
		}
	}

	return p, nil
}

func decodePage(node yaml.Node, idx int, legacyNotes []string, legacyBib [][]string) (models.Page, error) {
	if node.Kind == yaml.ScalarNode {
		var content string
		if err := node.Decode(&content); err != nil {
			return models.Page{}, fmt.Errorf("document: parse page %d: %w", idx+1, err)
		}
		page := models.Page{Content: content, Bib: []string{}}
		if idx < len(legacyNotes) {
			page.Script = legacyNotes[idx]
		}
		if idx < len(legacyBib) && legacyBib[idx] != nil {
			page.Bib = legacyBib[idx]
		}
		return page, nil
	}

	var page models.Page
	if err := node.Decode(&page); err != nil {
		return models.Page{}, fmt.Errorf("document: parse page %d: %w", idx+1, err)
	}
	if page.Bib == nil {
		page.Bib = []string{}
	}
	return page, nil
}

// Marshal serializes a project document to YAML. Multiline strings come out
// as literal blocks, keeping diffs readable.
func Marshal(p *models.Project) ([]byte, error) {
	out, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("document: marshal: %w", err)
	}
	return out, nil
}

// Default synthesizes the document served for a project that has no on-disk
// record yet.
func Default(name string, defaults models.Template) *models.Project {
	p := &models.Project{
		Name: name,
		Pages: []models.Page{{
			Content: "\\begin{frame}\n\\end{frame}",
			Bib:     []string{},
		}},
		Template: defaults,
	}
	Normalize(p, defaults)
	return p
}
