package queue

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeCauseAction is a PersistableAction fixture: a plain string cause
// recorded on an item, round-tripped through save/load.
type fakeCauseAction struct {
	Cause string
}

func (a fakeCauseAction) ActionKind() string { return "cause" }
func (a fakeCauseAction) MarshalAction() ([]byte, error) {
	return []byte(a.Cause), nil
}

func unmarshalCauseAction(data []byte) (Action, error) {
	return fakeCauseAction{Cause: string(data)}, nil
}

func newTestRegistry(names ...string) TaskResolver {
	tasks := make(map[string]Task, len(names))
	for _, n := range names {
		tasks[n] = newFakeTask(n)
	}
	return func(name string) (Task, bool) {
		t, ok := tasks[name]
		return t, ok
	}
}

func TestExportExcludesNonPersistentAndPendingItems(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()

	persistent := newFakeTask("keep-me")
	transient := newFakeTask("drop-me")
	transient.persistent = false

	q.Schedule(persistent, 0)
	q.Schedule(transient, 0)
	q.Maintain() // promotes both to buildable

	entries := q.Export()
	if len(entries) != 1 || entries[0].TaskName != "keep-me" {
		t.Fatalf("expected only the persistent task exported, got %+v", entries)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()

	task := newFakeTask("build-a")
	q.Schedule(task, 0)
	q.Maintain()

	dir := t.TempDir()
	path := filepath.Join(dir, "queue.xml")
	if err := q.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	q2 := NewQueue(nil, nil)
	defer q2.Close()
	resolve := newTestRegistry("build-a")
	if err := q2.Load(path, filepath.Join(dir, "queue.txt"), resolve); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if !q2.Contains(task) {
		t.Fatal("expected the restored queue to contain the persisted task")
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected the structured file to be retired to a .bak sibling: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected the original queue.xml to no longer exist after retirement")
	}
}

func TestSaveLoadRoundTripsPersistableActions(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()
	q.RegisterActionKind("cause", unmarshalCauseAction)

	task := newFakeTask("build-a")
	q.Schedule(task, 0, fakeCauseAction{Cause: "manual trigger"})

	dir := t.TempDir()
	path := filepath.Join(dir, "queue.xml")
	if err := q.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	q2 := NewQueue(nil, nil)
	defer q2.Close()
	q2.RegisterActionKind("cause", unmarshalCauseAction)
	resolve := newTestRegistry("build-a")
	if err := q2.Load(path, filepath.Join(dir, "queue.txt"), resolve); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	items := q2.ItemsFor(task)
	if len(items) != 1 {
		t.Fatalf("expected exactly one restored item, got %d", len(items))
	}
	actions := items[0].Actions()
	if len(actions) != 1 {
		t.Fatalf("expected the persistable action to survive the round trip, got %d actions", len(actions))
	}
	restored, ok := actions[0].(fakeCauseAction)
	if !ok || restored.Cause != "manual trigger" {
		t.Fatalf("expected the restored cause action to match, got %+v", actions[0])
	}
}

func TestImportDropsActionsWithUnregisteredKind(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()

	entries := []PersistedEntry{
		{
			ID: 1, TaskName: "build-a", Stage: "waiting",
			Actions: []PersistedAction{{Kind: "never-registered", Data: []byte("x")}},
		},
	}
	q.Import(entries, newTestRegistry("build-a"))

	items := q.ItemsFor(newFakeTask("build-a"))
	if len(items) != 1 {
		t.Fatalf("expected the item itself to survive an unregistered action kind, got %d items", len(items))
	}
	if len(items[0].Actions()) != 0 {
		t.Fatalf("expected the unregistered action to be dropped, got %v", items[0].Actions())
	}
}

func TestLoadPrefersLegacyFileAndDeletesIt(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()

	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "queue.txt")
	if err := os.WriteFile(legacyPath, []byte("build-a\nbuild-b\n"), 0o644); err != nil {
		t.Fatalf("failed to write legacy fixture: %v", err)
	}

	resolve := newTestRegistry("build-a", "build-b")
	if err := q.Load(filepath.Join(dir, "queue.xml"), legacyPath, resolve); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if !q.Contains(newFakeTask("build-a")) || !q.Contains(newFakeTask("build-b")) {
		t.Fatal("expected both legacy entries to be re-scheduled")
	}
	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Fatal("expected the legacy file to be deleted outright, not backed up")
	}
	if _, err := os.Stat(legacyPath + ".bak"); !os.IsNotExist(err) {
		t.Fatal("expected no .bak sibling for the legacy migration path")
	}
}

func TestImportDropsUnresolvedTaskAndSeedsAllocator(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()

	entries := []PersistedEntry{
		{ID: 42, TaskName: "unknown-task", Stage: "waiting"},
	}
	resolve := newTestRegistry() // resolves nothing
	q.Import(entries, resolve)

	if !q.IsEmpty() {
		t.Fatal("expected the unresolved entry to be dropped")
	}

	// The allocator must still be seeded past the dropped entry's id so a
	// fresh schedule never reuses it.
	item := q.Schedule(newFakeTask("build-a"), 0)
	if item.ID() <= 42 {
		t.Fatalf("expected a fresh id above the seeded value, got %d", item.ID())
	}
}

func TestLoadStructuredMissingFileIsNotAnError(t *testing.T) {
	q := NewQueue(nil, nil)
	defer q.Close()

	dir := t.TempDir()
	err := q.Load(filepath.Join(dir, "missing.xml"), filepath.Join(dir, "missing.txt"), newTestRegistry())
	if err != nil {
		t.Fatalf("expected a missing queue file to be a no-op, got %v", err)
	}
	if !q.IsEmpty() {
		t.Fatal("expected an empty queue when there is nothing to load")
	}
}
