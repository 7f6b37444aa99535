package index

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/store"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatcher(t *testing.T, db *DB, st *store.Store) *eventLog {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := &eventLog{}
	go Watch(ctx, db, st, logger, log.record)
	time.Sleep(100 * time.Millisecond)
	return log
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, project string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+project)
	l.mu.Unlock()
}

func (l *eventLog) has(want string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == want {
			return true
		}
	}
	return false
}

func TestWatcher_NewProjectIndexed(t *testing.T) {
	db := testDB(t)
	st := testStore(t)
	log := startWatcher(t, db, st)

	if err := st.Save("fresh", &models.Project{Pages: []models.Page{{Content: "watched words"}}}); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("fresh")
		return cs != ""
	}, "new project not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:fresh") || log.has("updated:fresh")
	}, "no callback for new project")
}

func TestWatcher_UpdateReindexed(t *testing.T) {
	db := testDB(t)
	st := testStore(t)

	if err := st.Save("talk", &models.Project{Pages: []models.Page{{Content: "first"}}}); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, st, discardLogger()); err != nil {
		t.Fatal(err)
	}
	before, _ := db.GetChecksum("talk")

	startWatcher(t, db, st)

	if err := st.Save("talk", &models.Project{Pages: []models.Page{{Content: "second"}}}); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("talk")
		return cs != "" && cs != before
	}, "changed record not reindexed by watcher")
}

func TestWatcher_DeleteRemoves(t *testing.T) {
	db := testDB(t)
	st := testStore(t)

	if err := st.Save("doomed", &models.Project{Pages: []models.Page{{Content: "x"}}}); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, st, discardLogger()); err != nil {
		t.Fatal(err)
	}

	log := startWatcher(t, db, st)

	if err := st.DeleteProject("doomed"); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("doomed")
		return cs == ""
	}, "deleted project still indexed")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("deleted:doomed")
	}, "no delete callback")
}
