package index

import (
	"testing"

	"github.com/lecternlabs/lectern/internal/lock"
	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/store"
	"github.com/lecternlabs/lectern/internal/templates"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir(), lock.NewGate("secret"), templates.NewLibrary(t.TempDir()), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSyncIndexesWorkspace(t *testing.T) {
	db := testDB(t)
	st := testStore(t)

	if err := st.Save("talk", &models.Project{Pages: []models.Page{{Content: "syncable content"}}}); err != nil {
		t.Fatal(err)
	}
	if err := st.Save("other", &models.Project{Pages: []models.Page{{Content: "different words"}}}); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, st, discardLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	results, err := db.Search("syncable", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Project != "talk" {
		t.Errorf("results = %+v, want 1 hit for talk", results)
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(checksums) != 2 {
		t.Errorf("checksums = %v, want 2 entries", checksums)
	}
}

func TestSyncRemovesStaleProjects(t *testing.T) {
	db := testDB(t)
	st := testStore(t)

	if err := st.Save("keep", &models.Project{Pages: []models.Page{{Content: "x"}}}); err != nil {
		t.Fatal(err)
	}
	_ = db.ReindexProject(testProject("ghost", models.Page{Content: "gone from disk"}), "stale")

	if err := Sync(db, st, discardLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if cs, _ := db.GetChecksum("ghost"); cs != "" {
		t.Errorf("stale project survived sync with checksum %q", cs)
	}
	if cs, _ := db.GetChecksum("keep"); cs == "" {
		t.Error("live project not indexed")
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	db := testDB(t)
	st := testStore(t)

	if err := st.Save("talk", &models.Project{Pages: []models.Page{{Content: "stable"}}}); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, st, discardLogger()); err != nil {
		t.Fatal(err)
	}
	first, _ := db.GetChecksum("talk")
	if first == "" {
		t.Fatal("project not indexed")
	}

	if err := Sync(db, st, discardLogger()); err != nil {
		t.Fatal(err)
	}
	second, _ := db.GetChecksum("talk")
	if second != first {
		t.Errorf("checksum changed across no-op sync: %q vs %q", first, second)
	}
}
