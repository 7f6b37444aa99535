// Package models defines the domain types for Lectern.
package models

// Template holds the three typesetting sections wrapped around a deck's pages.
type Template struct {
	Header      string `yaml:"header" json:"header"`
	BeforePages string `yaml:"beforePages" json:"beforePages"`
	Footer      string `yaml:"footer" json:"footer"`
}

// MarkdownTemplate holds styling applied when notes are exported as HTML.
type MarkdownTemplate struct {
	CSS          string `yaml:"css" json:"css"`
	WrapperClass string `yaml:"wrapperClass" json:"wrapperClass"`
	CustomHead   string `yaml:"customHead,omitempty" json:"customHead,omitempty"`
}

// Page is one slide: typesetting markup, speaker script, markdown notes,
// bibliography entries, and resource files scoped to this page.
type Page struct {
	Content   string   `yaml:"content" json:"content"`
	Script    string   `yaml:"script" json:"script"`
	Notes     string   `yaml:"notes" json:"notes"`
	Bib       []string `yaml:"bib" json:"bib"`
	Resources []string `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// Project is the canonical document for one deck.
type Project struct {
	Name             string            `yaml:"project" json:"project"`
	Pages            []Page            `yaml:"pages" json:"pages"`
	Template         Template          `yaml:"template" json:"template"`
	MarkdownTemplate *MarkdownTemplate `yaml:"markdownTemplate,omitempty" json:"markdownTemplate,omitempty"`
	Resources        []string          `yaml:"resources,omitempty" json:"resources,omitempty"`
	Bib              []string          `yaml:"bib,omitempty" json:"bib,omitempty"`
	PasswordHash     string            `yaml:"passwordHash,omitempty" json:"-"`
	RemoteSync       bool              `yaml:"remoteSync,omitempty" json:"remoteSync"`
}

// Locked reports whether the project is password protected.
func (p *Project) Locked() bool {
	return p.PasswordHash != ""
}

// Meta is the ungated summary of a project.
type Meta struct {
	Name        string `json:"project"`
	HasPassword bool   `json:"hasPassword"`
	RemoteSync  bool   `json:"remoteSync"`
	Pages       int    `json:"pages"`
}
