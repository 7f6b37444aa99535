// Package rewrite normalizes asset paths embedded in typesetting markup so
// that saved documents always reference landed files by bare name.
package rewrite

import (
	"path"
	"regexp"
	"strings"
)

var (
	includeRe = regexp.MustCompile(`(\\includegraphics(?:\[[^]]*\])?)(\{+)([^{}]+?)(\}+)`)
	imgRe     = regexp.MustCompile(`(\\img(?:\[[^]]*\])?)(\{+)([^{}]+?)(\}+)`)
)

// CleanPath reduces an embedded asset path to a safe basename. Query strings
// are dropped, leading "./" segments stripped. Paths carrying "#" markers
// (typesetting parameter placeholders) are returned untouched.
func CleanPath(p string) string {
	if p == "" {
		return p
	}
	cleaned := strings.TrimSpace(p)
	if i := strings.Index(cleaned, "?"); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = strings.ReplaceAll(cleaned, "\\\\", "/")
	for strings.HasPrefix(cleaned, "./") {
		cleaned = cleaned[2:]
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, "{}")
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "" || strings.Contains(cleaned, "#") {
		return cleaned
	}
	return path.Base(cleaned)
}

// Content rewrites image macros in typesetting markup so every referenced
// asset path is reduced to its basename.
func Content(content string) string {
	if content == "" {
		return content
	}
	content = includeRe.ReplaceAllStringFunc(content, rewriteMatch(includeRe))
	content = imgRe.ReplaceAllStringFunc(content, rewriteMatch(imgRe))
	return content
}

func rewriteMatch(re *regexp.Regexp) func(string) string {
	return func(m string) string {
		groups := re.FindStringSubmatch(m)
		prefix, opens, p, closes := groups[1], groups[2], groups[3], groups[4]
		if strings.Contains(p, "#") || strings.TrimSpace(p) == "" {
			return m
		}
		normalized := CleanPath(p)
		if normalized == "" {
			return m
		}
		if len(opens) > 1 || len(closes) > 1 {
			return prefix + opens + normalized + closes
		}
		return prefix + "{" + normalized + "}"
	}
}
