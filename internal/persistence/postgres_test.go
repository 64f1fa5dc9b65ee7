package persistence

import (
	"os"
	"testing"
	"time"

	"github.com/forgeci/buildqueue/internal/queue"
)

// getTestPostgresStore creates a test PostgreSQL store.
// Skips the test if TEST_DATABASE_URL is not set.
func getTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	store, err := NewPostgresStore(dbURL)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	_, _ = store.db.Exec("DELETE FROM queue_items")

	t.Cleanup(func() {
		_, _ = store.db.Exec("DELETE FROM queue_items")
		_ = store.Close()
	})

	return store
}

func TestPostgresStoreSaveReplacesPreviousContents(t *testing.T) {
	store := getTestPostgresStore(t)

	first := []queue.PersistedEntry{
		{ID: 1, TaskName: "build-a", Stage: "waiting", InQueueSince: time.Now()},
		{ID: 2, TaskName: "build-b", Stage: "blocked", InQueueSince: time.Now()},
	}
	if err := store.Save(first); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}

	second := []queue.PersistedEntry{
		{ID: 3, TaskName: "build-c", Stage: "buildable", InQueueSince: time.Now()},
	}
	if err := store.Save(second); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("failed to load after replace: %v", err)
	}
	if len(loaded) != 1 || loaded[0].TaskName != "build-c" {
		t.Fatalf("expected Save to fully replace prior contents, got %+v", loaded)
	}
}

func TestPostgresStoreLoadPreservesFields(t *testing.T) {
	store := getTestPostgresStore(t)

	dueAt := time.Now().Add(5 * time.Minute).Truncate(time.Microsecond)
	enteredAt := time.Now().Truncate(time.Microsecond)
	inQueueSince := time.Now().Add(-time.Minute).Truncate(time.Microsecond)

	entries := []queue.PersistedEntry{
		{
			ID:           42,
			TaskName:     "deploy-staging",
			Stage:        "pending",
			InQueueSince: inQueueSince,
			DueAt:        dueAt,
			EnteredAt:    enteredAt,
		},
	}
	if err := store.Save(entries); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(loaded))
	}

	got := loaded[0]
	if got.ID != 42 || got.TaskName != "deploy-staging" || got.Stage != "pending" {
		t.Fatalf("unexpected round-tripped entry: %+v", got)
	}
	if !got.DueAt.Equal(dueAt) {
		t.Errorf("DueAt = %v, want %v", got.DueAt, dueAt)
	}
	if !got.EnteredAt.Equal(enteredAt) {
		t.Errorf("EnteredAt = %v, want %v", got.EnteredAt, enteredAt)
	}
}

func TestPostgresStoreLoadOrdersByID(t *testing.T) {
	store := getTestPostgresStore(t)

	entries := []queue.PersistedEntry{
		{ID: 3, TaskName: "c", Stage: "waiting", InQueueSince: time.Now()},
		{ID: 1, TaskName: "a", Stage: "waiting", InQueueSince: time.Now()},
		{ID: 2, TaskName: "b", Stage: "waiting", InQueueSince: time.Now()},
	}
	if err := store.Save(entries); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(loaded))
	}
	for i, want := range []uint64{1, 2, 3} {
		if loaded[i].ID != want {
			t.Errorf("loaded[%d].ID = %d, want %d", i, loaded[i].ID, want)
		}
	}
}

func TestPostgresStoreEmptyLoad(t *testing.T) {
	store := getTestPostgresStore(t)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected an empty store to load 0 entries, got %d", len(loaded))
	}
}
