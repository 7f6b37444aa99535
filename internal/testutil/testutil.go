// Package testutil provides shared test helpers for setting up workspaces
// and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/lecternlabs/lectern/internal/index"
	"github.com/lecternlabs/lectern/internal/lock"
	"github.com/lecternlabs/lectern/internal/store"
	"github.com/lecternlabs/lectern/internal/templates"
)

// Logger returns a logger that discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lectern-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary workspace with a ready store.
func TestStore(t *testing.T) (string, *store.Store) {
	t.Helper()
	root := t.TempDir()
	gate := lock.NewGate("test-secret")
	lib := templates.NewLibrary(t.TempDir())
	st, err := store.New(root, gate, lib, Logger())
	if err != nil {
		t.Fatal(err)
	}
	return root, st
}

// TestGate returns a gate with a fixed secret for token round-trips.
func TestGate() *lock.Gate {
	return lock.NewGate("test-secret")
}
