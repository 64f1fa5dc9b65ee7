package queue

import (
	"sync"
	"time"
)

// WorkUnit is one executable slice of a BuildableItem's work, handed to a
// single executor. A multi-subtask item produces one WorkUnit per
// subtask; exactly one of them is the "main" unit that owns the pending
// item's lifetime.
type WorkUnit struct {
	Context    *WorkUnitContext
	SubTask    SubTask
	IsMainWork bool
}

// WorkUnitContext tracks every WorkUnit produced for one BuildableItem
// during a single assignment pass, and lets an executor abort its share
// of the work if it dies while still parked with an assignment (spec
// 4.8 step 3).
type WorkUnitContext struct {
	Item *BuildableItem

	mu      sync.Mutex
	units   []*WorkUnit
	aborted bool
	abortMsg string
}

// NewWorkUnitContext returns a context for item with no units yet.
func NewWorkUnitContext(item *BuildableItem) *WorkUnitContext {
	return &WorkUnitContext{Item: item}
}

// CreateWorkUnit appends and returns a new WorkUnit for sub.
func (c *WorkUnitContext) CreateWorkUnit(sub SubTask, isMain bool) *WorkUnit {
	c.mu.Lock()
	defer c.mu.Unlock()
	wu := &WorkUnit{Context: c, SubTask: sub, IsMainWork: isMain}
	c.units = append(c.units, wu)
	return wu
}

// WorkUnits returns every unit produced so far.
func (c *WorkUnitContext) WorkUnits() []*WorkUnit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*WorkUnit, len(c.units))
	copy(out, c.units)
	return out
}

// Abort marks the context aborted with reason, used when an executor
// dies mid-assignment (spec 4.8 step 3).
func (c *WorkUnitContext) Abort(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
	c.abortMsg = reason
}

// Aborted reports whether Abort was called, and with what message.
func (c *WorkUnitContext) Aborted() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted, c.abortMsg
}

// JobOffer represents an idle executor parked inside the scheduler,
// waiting for an assignment (spec 3/4.6). It exists only while the
// executor is inside pop().
type JobOffer struct {
	Executor Executor

	mu       sync.Mutex
	workUnit *WorkUnit
	wake     chan struct{}
	woken    bool
}

// NewJobOffer returns an unassigned offer bound to exec.
func NewJobOffer(exec Executor) *JobOffer {
	return &JobOffer{Executor: exec, wake: make(chan struct{})}
}

// CanTake reports whether this offer may take item: the executor's node
// must exist and accept it, every dispatcher must raise no objection, and
// the offer itself must be unassigned, online, and accepting tasks (spec
// 4.6).
func (j *JobOffer) CanTake(item *BuildableItem, dispatchers []QueueTaskDispatcher) bool {
	node := j.Executor.Node()
	if node == nil {
		return false
	}
	if reason := node.CanTake(item); reason != "" {
		return false
	}
	for _, d := range dispatchers {
		if reason := safeCanTake(d, node, item); reason != "" {
			return false
		}
	}
	return j.IsAvailable()
}

// IsAvailable reports whether the offer has no assignment yet and its
// executor is ready to accept one.
func (j *JobOffer) IsAvailable() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.workUnit == nil && j.Executor.IsOnline() && j.Executor.IsAcceptingTasks()
}

// Set assigns workUnit to this offer and wakes the parked executor. It is
// illegal to call Set twice on the same offer (spec 4.6).
func (j *JobOffer) Set(wu *WorkUnit) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.workUnit != nil {
		panic("queue: JobOffer.Set called twice")
	}
	j.workUnit = wu
	if !j.woken {
		j.woken = true
		close(j.wake)
	}
}

// WorkUnit returns the assigned unit, or nil if still unassigned.
func (j *JobOffer) WorkUnit() *WorkUnit {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.workUnit
}

// Signal wakes the parked executor without assigning any work, used by
// scheduleMaintenance to nudge one idle executor into running maintain()
// (spec 4.3).
func (j *JobOffer) Signal() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.woken {
		j.woken = true
		close(j.wake)
	}
}

// Wait blocks until the offer is signalled/assigned, or until timeout
// elapses. timeout < 0 blocks indefinitely (spec 4.8 step d).
func (j *JobOffer) Wait(timeout time.Duration) {
	if timeout < 0 {
		<-j.wake
		return
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-j.wake:
	case <-t.C:
	}
}
