//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/lecternlabs/lectern/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages_fts`).Scan(&count); err != nil {
		t.Fatalf("pages_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	p := testProject("talk", models.Page{Content: "Lectern provides powerful full-text search capabilities."})
	if err := db.ReindexProject(p, "c1"); err != nil {
		t.Fatalf("ReindexProject: %v", err)
	}

	results, err := db.Search("powerful", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Project != "talk" {
		t.Errorf("project = %q", results[0].Project)
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("snippet = %q, want highlight markers", results[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.ReindexProject(testProject("gone", models.Page{Content: "vanishing content"}), "g")
	_ = db.DeleteProject("gone")

	results, _ := db.Search("vanishing", "", 10)
	for _, r := range results {
		if r.Project == "gone" {
			t.Error("deleted project still in FTS index")
		}
	}
}

func TestFTS5_ReindexReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.ReindexProject(testProject("evo", models.Page{Content: "original text"}), "1")
	_ = db.ReindexProject(testProject("evo", models.Page{Content: "replacement text"}), "2")

	results, _ := db.Search("original", "", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", "", 10)
	if len(results) != 1 {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_RenameKeepsContentSearchable(t *testing.T) {
	db := testDB(t)
	_ = db.ReindexProject(testProject("before", models.Page{Content: "durable phrase"}), "1")
	if err := db.RenameProject("before", "after"); err != nil {
		t.Fatalf("RenameProject: %v", err)
	}

	results, _ := db.Search("durable", "", 10)
	if len(results) != 1 || results[0].Project != "after" {
		t.Errorf("results = %+v, want hit under new name", results)
	}
}
