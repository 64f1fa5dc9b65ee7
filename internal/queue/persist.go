package queue

import (
	"bufio"
	"encoding/xml"
	"os"
	"time"
)

// TaskResolver looks up a Task by the full name it was persisted under.
// The queue package has no registry of its own for this (spec 9, "task
// handles in persistence are stored as the task's full name and
// resolved by name on load"); callers supply one backed by whatever
// registers real tasks.
type TaskResolver func(fullName string) (Task, bool)

// persistedFile is the on-disk shape of queue.xml. The exact layout is
// explicitly out of scope (spec 1); this is the minimal structure that
// satisfies save/load round-tripping (spec 4.9, P6).
type persistedFile struct {
	XMLName xml.Name         `xml:"queue"`
	Items   []PersistedEntry `xml:"item"`
}

type PersistedEntry struct {
	ID           uint64            `xml:"id,attr"`
	TaskName     string            `xml:"task"`
	Stage        string            `xml:"stage"`
	InQueueSince time.Time         `xml:"inQueueSince"`
	DueAt        time.Time         `xml:"dueAt,omitempty"`
	EnteredAt    time.Time         `xml:"enteredNonWaitingAt,omitempty"`
	Actions      []PersistedAction `xml:"action,omitempty"`
}

// PersistedAction is the on-disk shape of one PersistableAction: kind
// names the registered ActionUnmarshaler that reconstructs it, data is
// whatever bytes MarshalAction produced (base64-encoded by
// encoding/xml, the way it encodes any []byte field). Actions that
// don't implement PersistableAction are simply not written here.
type PersistedAction struct {
	Kind string `xml:"kind,attr"`
	Data []byte `xml:"data"`
}

// persistableActions extracts the opt-in-persistable subset of actions,
// in order, logging and dropping any that fail to marshal (spec 7: a
// broken action must not sink the whole save).
func (q *Queue) persistableActions(actions []Action) []PersistedAction {
	var out []PersistedAction
	for _, a := range actions {
		pa, ok := a.(PersistableAction)
		if !ok {
			continue
		}
		data, err := pa.MarshalAction()
		if err != nil {
			q.logger.Warn("dropping action that failed to marshal", "kind", pa.ActionKind(), "error", err)
			continue
		}
		out = append(out, PersistedAction{Kind: pa.ActionKind(), Data: data})
	}
	return out
}

// reconstructActions rebuilds the action list for one entry, dropping
// (and logging) any persisted action whose kind has no registered
// ActionUnmarshaler, the same tolerant-of-missing-extensions posture
// Import already takes toward an unresolved task.
func (q *Queue) reconstructActions(persisted []PersistedAction) []Action {
	if len(persisted) == 0 {
		return nil
	}
	actions := make([]Action, 0, len(persisted))
	for _, pa := range persisted {
		unmarshal, ok := q.actionUnmarshaler(pa.Kind)
		if !ok {
			q.logger.Warn("dropping persisted action with unregistered kind", "kind", pa.Kind)
			continue
		}
		action, err := unmarshal(pa.Data)
		if err != nil {
			q.logger.Warn("dropping persisted action that failed to unmarshal", "kind", pa.Kind, "error", err)
			continue
		}
		actions = append(actions, action)
	}
	return actions
}

// Export returns every waiting, blocked, and buildable item whose task
// is persistent, in items() order, excluding pending items entirely
// (spec 4.9 "on save").
func (q *Queue) Export() []PersistedEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []PersistedEntry
	for _, w := range q.store.WaitingItems() {
		if !w.Task().IsPersistent() {
			continue
		}
		out = append(out, PersistedEntry{
			ID: w.ID(), TaskName: w.Task().FullDisplayName(), Stage: "waiting",
			InQueueSince: w.QueuedSince(), DueAt: w.DueAt,
			Actions: q.persistableActions(w.Actions()),
		})
	}
	for _, b := range q.store.BlockedItems() {
		if !b.Task().IsPersistent() {
			continue
		}
		out = append(out, PersistedEntry{
			ID: b.ID(), TaskName: b.Task().FullDisplayName(), Stage: "blocked",
			InQueueSince: b.QueuedSince(), EnteredAt: b.EnteredNonWaitingAt,
			Actions: q.persistableActions(b.Actions()),
		})
	}
	buildables := q.store.BuildableItems()
	for i := len(buildables) - 1; i >= 0; i-- {
		b := buildables[i]
		if !b.Task().IsPersistent() {
			continue
		}
		out = append(out, PersistedEntry{
			ID: b.ID(), TaskName: b.Task().FullDisplayName(), Stage: "buildable",
			InQueueSince: b.QueuedSince(), EnteredAt: b.EnteredNonWaitingAt,
			Actions: q.persistableActions(b.Actions()),
		})
	}
	return out
}

// Import places every entry into the stage its Stage field names,
// dropping entries whose task no longer resolves (spec 4.9 "corrupt
// persistence entry"), and seeds the id allocator above the highest id
// seen. It does not itself invoke maintenance; callers typically call
// ScheduleMaintenance afterward.
func (q *Queue) Import(entries []PersistedEntry, resolve TaskResolver) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range entries {
		q.ids.seed(e.ID)
		task, ok := resolve(e.TaskName)
		if !ok {
			q.logger.Warn("dropping persisted item with unresolved task", "task", e.TaskName, "id", e.ID)
			continue
		}
		p := payload{id: e.ID, task: task, future: NewFuture(), inQueueSince: e.InQueueSince, actions: q.reconstructActions(e.Actions)}
		switch e.Stage {
		case "waiting":
			q.store.InsertWaiting(&WaitingItem{payload: p, DueAt: e.DueAt})
		case "blocked":
			q.store.AddBlocked(&BlockedItem{payload: p, EnteredNonWaitingAt: e.EnteredAt})
		case "buildable":
			q.store.AddBuildable(&BuildableItem{payload: p, EnteredNonWaitingAt: e.EnteredAt})
		default:
			q.logger.Warn("dropping persisted item with unknown stage", "stage", e.Stage, "id", e.ID)
		}
	}
}

// ScheduleByName re-admits a task by its persisted full name with a
// zero quiet period, used for legacy queue.txt migration (spec 4.9).
func (q *Queue) ScheduleByName(name string, resolve TaskResolver) {
	task, ok := resolve(name)
	if !ok {
		q.logger.Warn("dropping legacy queue entry with unresolved task", "task", name)
		return
	}
	q.Schedule(task, 0)
}

// Save writes the exportable item set to path as queue.xml. An I/O
// failure is logged and returned to the caller; a failed save never
// panics, it just loses that snapshot.
func (q *Queue) Save(path string) error {
	entries := q.Export()
	f, err := os.Create(path)
	if err != nil {
		q.logger.Error("queue save failed", "path", path, "error", err)
		return err
	}
	defer f.Close()

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(persistedFile{Items: entries}); err != nil {
		q.logger.Error("queue save failed", "path", path, "error", err)
		return err
	}
	return nil
}

// Load restores items, preferring the legacy one-name-per-line file at
// legacyPath if present, then falling back to the structured queue.xml
// layout at path. The legacy file is deleted after migration; the
// structured file is renamed to a ".bak" sibling after a successful
// load, for post-mortem inspection (spec 4.9).
func (q *Queue) Load(path, legacyPath string, resolve TaskResolver) error {
	if _, err := os.Stat(legacyPath); err == nil {
		return q.loadLegacy(legacyPath, resolve)
	}
	return q.loadStructured(path, resolve)
}

func (q *Queue) loadLegacy(path string, resolve TaskResolver) error {
	f, err := os.Open(path)
	if err != nil {
		q.logger.Error("legacy queue load failed", "path", path, "error", err)
		return err
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := sc.Text()
		if name == "" {
			continue
		}
		q.ScheduleByName(name, resolve)
	}
	f.Close()
	if err := sc.Err(); err != nil {
		q.logger.Error("legacy queue load failed", "path", path, "error", err)
		return err
	}

	if err := os.Remove(path); err != nil {
		q.logger.Warn("failed to remove migrated legacy queue file", "path", path, "error", err)
	}
	return nil
}

func (q *Queue) loadStructured(path string, resolve TaskResolver) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		q.logger.Error("queue load failed", "path", path, "error", err)
		return err
	}

	var doc persistedFile
	dec := xml.NewDecoder(f)
	err = dec.Decode(&doc)
	f.Close()
	if err != nil {
		q.logger.Error("queue load failed, keeping partial state and leaving file in place", "path", path, "error", err)
		return err
	}

	q.Import(doc.Items, resolve)
	return retireSourceFile(path)
}

// retireSourceFile renames path to path+".bak", then leaves the
// renamed copy in place (spec 4.9: "rename to .bak sibling for
// post-mortem, then remove the original" — the rename itself already
// removes the original name, so there is nothing further to delete).
func retireSourceFile(path string) error {
	return os.Rename(path, path+".bak")
}
