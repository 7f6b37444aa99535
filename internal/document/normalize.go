// Package document implements the canonical project document model: parsing
// of current and legacy on-disk shapes, normalization into one always-valid
// struct, and YAML serialization.
package document

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/lecternlabs/lectern/internal/models"
)

var (
	bibURLRe    = regexp.MustCompile(`(?i)(url\s*=\s*[{"])\s*([^}"]+)([}"])`)
	slashRunRe  = regexp.MustCompile(`/+`)
	unsafeSegRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Normalize rewrites p in place into the canonical shape. It is idempotent
// and free of I/O: defaults for blank template sections are supplied by the
// caller. Every page ends up with the full five-field shape, list fields are
// deduplicated preserving first-seen order, and bibliography entries are
// repaired for brace balance.
func Normalize(p *models.Project, defaults models.Template) {
	if len(p.Pages) == 0 {
		p.Pages = []models.Page{{Bib: []string{}}}
	}
	for i := range p.Pages {
		normalizePage(&p.Pages[i])
	}

	p.Template.Header = cleanTemplateText(p.Template.Header, defaults.Header)
	p.Template.BeforePages = cleanTemplateText(p.Template.BeforePages, defaults.BeforePages)
	p.Template.Footer = cleanTemplateText(p.Template.Footer, defaults.Footer)

	p.Resources = sanitizeResourceList(p.Resources)
	p.Bib = sanitizeBibList(p.Bib)

	if p.MarkdownTemplate != nil {
		mt := p.MarkdownTemplate
		if mt.CSS == "" && mt.WrapperClass == "" && mt.CustomHead == "" {
			p.MarkdownTemplate = nil
		}
	}
}

func normalizePage(pg *models.Page) {
	pg.Bib = sanitizeBibList(pg.Bib)
	pg.Resources = sanitizeResourceList(pg.Resources)
	if len(pg.Resources) == 0 {
		pg.Resources = nil
	}
}

// cleanTemplateText drops lines containing only a stray continuation
// backslash, trims the result, and falls back to def when nothing is left.
func cleanTemplateText(value, def string) string {
	text := strings.ReplaceAll(value, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == `\` {
			continue
		}
		lines = append(lines, line)
	}
	cleaned := strings.TrimSpace(strings.Join(lines, "\n"))
	if cleaned == "" {
		return def
	}
	return cleaned
}

// SanitizeResourcePath normalizes a stored resource reference to a safe
// relative path: separators unified, empty / "." / ".." segments dropped,
// and each segment reduced to filename-safe characters.
func SanitizeResourcePath(value string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "\\", "/")
	cleaned = slashRunRe.ReplaceAllString(cleaned, "/")
	cleaned = strings.TrimPrefix(cleaned, "/")
	switch cleaned {
	case "", ".", "..":
		return ""
	}
	var parts []string
	for _, seg := range strings.Split(cleaned, "/") {
		switch seg {
		case "", ".", "..":
			continue
		}
		seg = strings.ReplaceAll(seg, " ", "_")
		seg = unsafeSegRe.ReplaceAllString(seg, "")
		seg = strings.Trim(seg, "._")
		if seg == "" {
			continue
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/")
}

func sanitizeResourceList(items []string) []string {
	var cleaned []string
	for _, item := range items {
		name := SanitizeResourcePath(item)
		if name == "" {
			continue
		}
		cleaned = append(cleaned, name)
	}
	return dedupePreserve(cleaned)
}

// SanitizeBibEntry repairs a single bibliography block: line endings are
// unified, embedded url fields lose their query/fragment components, excess
// trailing closing braces are stripped and missing ones appended.
func SanitizeBibEntry(entry string) string {
	entry = strings.ReplaceAll(entry, "\r\n", "\n")
	lines := strings.Split(entry, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	entry = strings.Join(lines, "\n")

	entry = bibURLRe.ReplaceAllStringFunc(entry, func(m string) string {
		groups := bibURLRe.FindStringSubmatch(m)
		cleaned := StripURLQueryFragment(groups[2])
		if cleaned == "" {
			return m
		}
		return groups[1] + cleaned + groups[3]
	})

	entry = strings.TrimRight(entry, " \t\n")
	opens := strings.Count(entry, "{")
	closes := strings.Count(entry, "}")

	for closes > opens && strings.HasSuffix(entry, "}") {
		entry = strings.TrimRight(strings.TrimSuffix(entry, "}"), " \t\n")
		closes--
	}
	if closes < opens {
		missing := opens - closes
		if entry != "" && !strings.HasSuffix(entry, "\n") {
			entry += "\n"
		}
		entry += strings.TrimSuffix(strings.Repeat("}\n", missing), "\n")
	}
	return entry
}

func sanitizeBibList(items []string) []string {
	var cleaned []string
	for _, entry := range items {
		s := SanitizeBibEntry(strings.TrimSpace(entry))
		if s == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}
	out := dedupePreserve(cleaned)
	if out == nil {
		return []string{}
	}
	return out
}

// StripURLQueryFragment removes query and fragment components so equivalent
// resource URLs deduplicate stably.
func StripURLQueryFragment(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" && u.Host != "" {
		u.RawQuery = ""
		u.Fragment = ""
		if s := u.String(); s != "" {
			return s
		}
	}
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.Index(trimmed, "#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

func dedupePreserve(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
