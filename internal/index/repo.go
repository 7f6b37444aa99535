package index

import (
	"fmt"
	"time"

	"github.com/lecternlabs/lectern/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Project string
	Page    int
	Snippet string
}

// ReindexProject replaces a project's indexed pages within a transaction.
// Password-protected projects keep their checksum row but carry no pages,
// so their content never shows up in search results.
func (db *DB) ReindexProject(p *models.Project, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO projects (name, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, p.Name, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM pages WHERE project = ?`, p.Name)
	ftsDeleteProject(tx, p.Name)

	if !p.Locked() {
		stmt, err := tx.Prepare(`INSERT INTO pages (project, page, content, script, notes) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare page insert: %w", err)
		}
		defer stmt.Close()
		for i, page := range p.Pages {
			if _, err := stmt.Exec(p.Name, i, page.Content, page.Script, page.Notes); err != nil {
				return fmt.Errorf("index: insert page: %w", err)
			}
			if err := ftsUpsertPage(tx, p.Name, i, page.Content, page.Script, page.Notes); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteProject removes a project's rows and FTS entries.
func (db *DB) DeleteProject(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteProject(tx, name)
	_, _ = tx.Exec(`DELETE FROM pages WHERE project = ?`, name)
	_, _ = tx.Exec(`DELETE FROM projects WHERE name = ?`, name)

	return tx.Commit()
}

// RenameProject rewrites index rows after a project rename.
func (db *DB) RenameProject(oldName, newName string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`UPDATE projects SET name = ? WHERE name = ?`, newName, oldName)
	_, _ = tx.Exec(`UPDATE pages SET project = ? WHERE project = ?`, newName, oldName)
	ftsRenameProject(tx, oldName, newName)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a project, or empty string if
// not indexed yet.
func (db *DB) GetChecksum(name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM projects WHERE name = ?`, name).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns every indexed project and its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, cs string
		if err := rows.Scan(&name, &cs); err != nil {
			return nil, err
		}
		out[name] = cs
	}
	return out, rows.Err()
}
