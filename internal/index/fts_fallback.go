//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the pages table.
	return nil
}

func ftsUpsertPage(_ *sql.Tx, _ string, _ int, _, _, _ string) error {
	// Content is already stored in the pages table; nothing extra to do.
	return nil
}

func ftsDeleteProject(_ *sql.Tx, _ string) {}

func ftsRenameProject(_ *sql.Tx, _, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). An empty project searches every project.
func (db *DB) Search(query, project string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	sqlText := `
		SELECT project, page, substr(content, 1, 200)
		FROM pages
		WHERE (content LIKE ? OR script LIKE ? OR notes LIKE ?)
	`
	args := []any{like, like, like}
	if project != "" {
		sqlText += ` AND project = ?`
		args = append(args, project)
	}
	sqlText += ` LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Project, &r.Page, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
