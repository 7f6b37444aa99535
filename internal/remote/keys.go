package remote

import (
	"path"
	"strings"
)

// Category names the workspace subtree an object belongs to.
type Category string

const (
	CategoryAttachments Category = "attachments"
	CategoryResources   Category = "resources"
	CategoryProject     Category = "project"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "lectern"

// CleanPrefix normalizes a configured key prefix, falling back to the
// default when empty.
func CleanPrefix(prefix string) string {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if p == "" {
		return DefaultPrefix
	}
	return p
}

// ObjectKey builds the current bucket key for a project file:
//
//	<prefix>/<project>/<category>/<rel>
func ObjectKey(prefix, project string, category Category, rel string) string {
	return path.Join(CleanPrefix(prefix), project, string(category), path.Clean(strings.TrimPrefix(rel, "/")))
}

// CategoryPrefix returns the listing prefix covering one category of a
// project, with a trailing slash so sibling categories never match.
func CategoryPrefix(prefix, project string, category Category) string {
	return path.Join(CleanPrefix(prefix), project, string(category)) + "/"
}

// LegacyObjectKeys returns older key shapes still probed on fetch, newest
// first. Early deployments grouped by category before project; the earliest
// omitted the category entirely.
func LegacyObjectKeys(prefix, project string, category Category, rel string) []string {
	p := CleanPrefix(prefix)
	rel = path.Clean(strings.TrimPrefix(rel, "/"))
	return []string{
		path.Join(p, string(category), project, rel),
		path.Join(p, project, rel),
	}
}

// RelFromKey strips the current-scheme key prefix for one category, returning
// the workspace-relative path and whether the key belonged to that category.
func RelFromKey(prefix, project string, category Category, key string) (string, bool) {
	cp := CategoryPrefix(prefix, project, category)
	if !strings.HasPrefix(key, cp) {
		return "", false
	}
	rel := strings.TrimPrefix(key, cp)
	if rel == "" {
		return "", false
	}
	return rel, true
}
