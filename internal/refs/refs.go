// Package refs derives asset reference counts from a project document.
// Usage is computed on demand and never persisted: it exists to gate
// destructive operations on attachment/resource files.
package refs

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/lecternlabs/lectern/internal/document"
	"github.com/lecternlabs/lectern/internal/models"
)

var scanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\\includegraphics(?:\[[^]]*])?\{([^}]+)\}`),
	regexp.MustCompile(`\\img(?:\[[^]]*])?\{([^}]+)\}`),
	regexp.MustCompile(`\\href\{([^}]+)\}`),
	regexp.MustCompile(`\\url\{([^}]+)\}`),
	regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`),
	regexp.MustCompile(`(?i)\bsrc=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)\bhref=["']([^"']+)["']`),
}

// Usage records which parts of a document cite one asset path.
type Usage struct {
	Pages    map[int]struct{}
	Global   bool
	Contexts []string
}

// PageIndices returns the referencing pages in ascending order.
func (u *Usage) PageIndices() []int {
	out := make([]int, 0, len(u.Pages))
	for idx := range u.Pages {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Collect scans the whole document and maps each normalized asset path to
// its usage: stored per-page and global resource lists plus references
// embedded in page content/script/notes/bib and the template sections.
// Scanned references are keyed by basename for matching against stored
// resource lists.
func Collect(p *models.Project) map[string]*Usage {
	usage := make(map[string]*Usage)

	entry := func(key string) *Usage {
		u, ok := usage[key]
		if !ok {
			u = &Usage{Pages: make(map[int]struct{})}
			usage[key] = u
		}
		return u
	}

	addPage := func(key string, idx int, context string) {
		u := entry(key)
		u.Pages[idx] = struct{}{}
		u.Contexts = append(u.Contexts, context)
	}
	addGlobal := func(key, context string) {
		u := entry(key)
		u.Global = true
		u.Contexts = append(u.Contexts, context)
	}

	// register resolves a scanned link target to its basename, preferring an
	// already-known stored path with the same basename.
	register := func(raw string, record func(key string)) {
		base := normalizeTarget(raw)
		if base == "" {
			return
		}
		var candidates []string
		for key := range usage {
			if path.Base(key) == base {
				candidates = append(candidates, key)
			}
		}
		if len(candidates) == 0 {
			record(base)
			return
		}
		sort.Strings(candidates)
		record(candidates[0])
	}

	scan := func(text string, record func(key string)) {
		if text == "" {
			return
		}
		for _, re := range scanPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				register(m[1], record)
			}
		}
	}

	// Stored lists first so scanned basenames can attach to nested paths.
	for idx, page := range p.Pages {
		for _, res := range page.Resources {
			if key := document.SanitizeResourcePath(res); key != "" {
				addPage(key, idx, fmt.Sprintf("page %d resources", idx+1))
			}
		}
	}
	for _, res := range p.Resources {
		if key := document.SanitizeResourcePath(res); key != "" {
			addGlobal(key, "global resources")
		}
	}

	for idx, page := range p.Pages {
		i := idx
		pageRecord := func(context string) func(string) {
			return func(key string) { addPage(key, i, context) }
		}
		scan(page.Content, pageRecord(fmt.Sprintf("page %d content", idx+1)))
		scan(page.Notes, pageRecord(fmt.Sprintf("page %d notes", idx+1)))
		scan(page.Script, pageRecord(fmt.Sprintf("page %d script", idx+1)))
		for _, bib := range page.Bib {
			scan(bib, pageRecord(fmt.Sprintf("page %d bibliography", idx+1)))
		}
	}

	globalRecord := func(context string) func(string) {
		return func(key string) { addGlobal(key, context) }
	}
	scan(p.Template.Header, globalRecord("template header"))
	scan(p.Template.BeforePages, globalRecord("template beforePages"))
	scan(p.Template.Footer, globalRecord("template footer"))
	if mt := p.MarkdownTemplate; mt != nil {
		scan(mt.CSS, globalRecord("markdown template css"))
		scan(mt.CustomHead, globalRecord("markdown template head"))
	}
	for i, bib := range p.Bib {
		scan(bib, globalRecord(fmt.Sprintf("global bibliography %d", i+1)))
	}

	for _, u := range usage {
		u.Contexts = dedupeSorted(u.Contexts)
	}
	return usage
}

// Lookup finds the usage record for a path, falling back to its basename
// the way scanned references are keyed.
func Lookup(usage map[string]*Usage, rel string) *Usage {
	key := document.SanitizeResourcePath(rel)
	if key == "" {
		return nil
	}
	if u, ok := usage[key]; ok {
		return u
	}
	if u, ok := usage[path.Base(key)]; ok {
		return u
	}
	return nil
}

// normalizeTarget cleans a scanned link or path down to a comparable
// basename. Remote URLs keep only their final path segment.
func normalizeTarget(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if i := strings.Index(cleaned, "?"); i >= 0 {
		cleaned = cleaned[:i]
	}
	if i := strings.Index(cleaned, "#"); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	return path.Base(cleaned)
}

func dedupeSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
