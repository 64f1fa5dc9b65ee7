package queue

import "sort"

// ItemStore holds the four stage containers (spec 3/invariant 1). It
// performs no locking of its own — the owning Queue serializes access
// under its fair reader-writer lock, the way the teacher's InMemoryStore
// is itself lock-protected by a mutex one layer up, except here the lock
// lives in the caller rather than the container.
type ItemStore struct {
	waiting   []*WaitingItem
	blocked   []*BlockedItem
	buildable []*BuildableItem
	pending   []*PendingItem
}

// NewItemStore returns an empty store.
func NewItemStore() *ItemStore {
	return &ItemStore{}
}

// --- waiting ---

// InsertWaiting inserts w into the waiting set, preserving (DueAt, ID)
// order (invariant 2).
func (s *ItemStore) InsertWaiting(w *WaitingItem) {
	idx := sort.Search(len(s.waiting), func(i int) bool {
		return waitingLess(w, s.waiting[i]) || (!waitingLess(s.waiting[i], w) && s.waiting[i].ID() >= w.ID())
	})
	s.waiting = append(s.waiting, nil)
	copy(s.waiting[idx+1:], s.waiting[idx:])
	s.waiting[idx] = w
}

func waitingLess(a, b *WaitingItem) bool {
	if a.DueAt.Equal(b.DueAt) {
		return a.ID() < b.ID()
	}
	return a.DueAt.Before(b.DueAt)
}

// Resort re-sorts the waiting set; call after mutating a waiting item's
// DueAt in place so ordering (invariant 2) survives the mutation.
func (s *ItemStore) Resort() {
	sort.SliceStable(s.waiting, func(i, j int) bool {
		return waitingLess(s.waiting[i], s.waiting[j])
	})
}

// PeekWaiting returns the earliest-due waiting item without removing it.
func (s *ItemStore) PeekWaiting() (*WaitingItem, bool) {
	if len(s.waiting) == 0 {
		return nil, false
	}
	return s.waiting[0], true
}

// PopWaiting removes and returns the earliest-due waiting item.
func (s *ItemStore) PopWaiting() (*WaitingItem, bool) {
	if len(s.waiting) == 0 {
		return nil, false
	}
	w := s.waiting[0]
	s.waiting = s.waiting[1:]
	return w, true
}

// RemoveWaiting removes w by identity (id), reporting whether it was
// found.
func (s *ItemStore) RemoveWaiting(w *WaitingItem) bool {
	for i, cur := range s.waiting {
		if cur.ID() == w.ID() {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// FindWaitingByTask returns every waiting item whose task equals task.
func (s *ItemStore) FindWaitingByTask(task Task) []*WaitingItem {
	var out []*WaitingItem
	for _, w := range s.waiting {
		if w.Task().Equals(task) {
			out = append(out, w)
		}
	}
	return out
}

// WaitingItems returns a snapshot of the waiting set in (DueAt, ID) order.
func (s *ItemStore) WaitingItems() []*WaitingItem {
	out := make([]*WaitingItem, len(s.waiting))
	copy(out, s.waiting)
	return out
}

// --- blocked ---

// AddBlocked appends b to the blocked set.
func (s *ItemStore) AddBlocked(b *BlockedItem) {
	s.blocked = append(s.blocked, b)
}

// RemoveBlocked removes b by identity.
func (s *ItemStore) RemoveBlocked(b *BlockedItem) bool {
	for i, cur := range s.blocked {
		if cur.ID() == b.ID() {
			s.blocked = append(s.blocked[:i], s.blocked[i+1:]...)
			return true
		}
	}
	return false
}

// BlockedItems returns a snapshot of the blocked set in insertion order.
func (s *ItemStore) BlockedItems() []*BlockedItem {
	out := make([]*BlockedItem, len(s.blocked))
	copy(out, s.blocked)
	return out
}

// --- buildable ---

// AddBuildable appends b to the buildable set.
func (s *ItemStore) AddBuildable(b *BuildableItem) {
	s.buildable = append(s.buildable, b)
}

// RemoveBuildable removes b by identity.
func (s *ItemStore) RemoveBuildable(b *BuildableItem) bool {
	for i, cur := range s.buildable {
		if cur.ID() == b.ID() {
			s.buildable = append(s.buildable[:i], s.buildable[i+1:]...)
			return true
		}
	}
	return false
}

// BuildableItems returns a snapshot of the buildable set in insertion
// order.
func (s *ItemStore) BuildableItems() []*BuildableItem {
	out := make([]*BuildableItem, len(s.buildable))
	copy(out, s.buildable)
	return out
}

// ContainsBuildableTask reports whether task already has a buildable
// item.
func (s *ItemStore) ContainsBuildableTask(task Task) bool {
	for _, b := range s.buildable {
		if b.Task().Equals(task) {
			return true
		}
	}
	return false
}

// --- pending ---

// AddPending appends p to the pending set.
func (s *ItemStore) AddPending(p *PendingItem) {
	s.pending = append(s.pending, p)
}

// RemovePending removes p by identity.
func (s *ItemStore) RemovePending(p *PendingItem) bool {
	for i, cur := range s.pending {
		if cur.ID() == p.ID() {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// PendingItems returns a snapshot of the pending set in insertion order.
func (s *ItemStore) PendingItems() []*PendingItem {
	out := make([]*PendingItem, len(s.pending))
	copy(out, s.pending)
	return out
}

// RemovePendingByID removes the pending item with the given id, if any.
func (s *ItemStore) RemovePendingByID(id uint64) (*PendingItem, bool) {
	for i, cur := range s.pending {
		if cur.ID() == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return cur, true
		}
	}
	return nil, false
}

// ContainsPendingTask reports whether task already has a pending item.
func (s *ItemStore) ContainsPendingTask(task Task) bool {
	for _, p := range s.pending {
		if p.Task().Equals(task) {
			return true
		}
	}
	return false
}

// --- cross-stage ---

// AllItems returns every item across all four stages. Waiting items come
// first in (DueAt, ID) order; blocked items in insertion order; buildable
// and pending items in reverse insertion order, matching the Jenkins
// original's Iterators.reverse over its buildables/pendings lists.
func (s *ItemStore) AllItems() []Item {
	out := make([]Item, 0, len(s.waiting)+len(s.blocked)+len(s.buildable)+len(s.pending))
	for _, w := range s.waiting {
		out = append(out, w)
	}
	for _, b := range s.blocked {
		out = append(out, b)
	}
	for i := len(s.buildable) - 1; i >= 0; i-- {
		out = append(out, s.buildable[i])
	}
	for i := len(s.pending) - 1; i >= 0; i-- {
		out = append(out, s.pending[i])
	}
	return out
}

// ItemByID searches all four stages for id.
func (s *ItemStore) ItemByID(id uint64) (Item, bool) {
	for _, it := range s.AllItems() {
		if it.ID() == id {
			return it, true
		}
	}
	return nil, false
}

// ItemsForTask returns every item across all stages whose task equals
// task.
func (s *ItemStore) ItemsForTask(task Task) []Item {
	var out []Item
	for _, it := range s.AllItems() {
		if it.Task().Equals(task) {
			out = append(out, it)
		}
	}
	return out
}

// ItemForTask returns the first item (by the AllItems ordering) whose
// task equals task.
func (s *ItemStore) ItemForTask(task Task) (Item, bool) {
	for _, it := range s.AllItems() {
		if it.Task().Equals(task) {
			return it, true
		}
	}
	return nil, false
}

// ContainsTask reports whether any stage holds an item for task.
func (s *ItemStore) ContainsTask(task Task) bool {
	_, ok := s.ItemForTask(task)
	return ok
}

// IsEmpty reports whether every stage is empty.
func (s *ItemStore) IsEmpty() bool {
	return len(s.waiting) == 0 && len(s.blocked) == 0 && len(s.buildable) == 0 && len(s.pending) == 0
}

// RemoveFromWaitingBlockedBuildable removes the first occurrence of item
// across waiting, blocked, and buildable (in that order), reporting
// whether anything was removed. Pending items are not removable via this
// path (spec 4.2).
func (s *ItemStore) RemoveFromWaitingBlockedBuildable(it Item) bool {
	switch v := it.(type) {
	case *WaitingItem:
		return s.RemoveWaiting(v)
	case *BlockedItem:
		return s.RemoveBlocked(v)
	case *BuildableItem:
		return s.RemoveBuildable(v)
	default:
		return false
	}
}

// RemoveTaskFromWaitingBlockedBuildable removes the first item for task
// across waiting, blocked, and buildable (in that order).
func (s *ItemStore) RemoveTaskFromWaitingBlockedBuildable(task Task) (Item, bool) {
	for _, w := range s.waiting {
		if w.Task().Equals(task) {
			s.RemoveWaiting(w)
			return w, true
		}
	}
	for _, b := range s.blocked {
		if b.Task().Equals(task) {
			s.RemoveBlocked(b)
			return b, true
		}
	}
	for _, b := range s.buildable {
		if b.Task().Equals(task) {
			s.RemoveBuildable(b)
			return b, true
		}
	}
	return nil, false
}
