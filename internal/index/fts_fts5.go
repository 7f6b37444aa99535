//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
			project UNINDEXED,
			page UNINDEXED,
			content,
			script,
			notes,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsertPage(tx *sql.Tx, project string, page int, content, script, notes string) error {
	_, err := tx.Exec(`INSERT INTO pages_fts (project, page, content, script, notes) VALUES (?, ?, ?, ?, ?)`,
		project, page, content, script, notes)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteProject(tx *sql.Tx, project string) {
	_, _ = tx.Exec(`DELETE FROM pages_fts WHERE project = ?`, project)
}

func ftsRenameProject(tx *sql.Tx, oldName, newName string) {
	_, _ = tx.Exec(`UPDATE pages_fts SET project = ? WHERE project = ?`, newName, oldName)
}

// Search performs an FTS5 full-text search and returns matching pages with
// snippets. An empty project searches every project.
func (db *DB) Search(query, project string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	sqlText := `
		SELECT project,
		       page,
		       snippet(pages_fts, 2, '<b>', '</b>', '...', 64)
		FROM pages_fts
		WHERE pages_fts MATCH ?
	`
	args := []any{query}
	if project != "" {
		sqlText += ` AND project = ?`
		args = append(args, project)
	}
	sqlText += ` ORDER BY rank LIMIT ?`
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
