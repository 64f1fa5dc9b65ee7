// Package queue implements the build queue scheduler: admission, the
// waiting/blocked/buildable/pending item lifecycle, the maintenance loop,
// and the executor parking protocol.
package queue

import "time"

// ResourceList is the set of named resources a task requires, or that a
// node currently holds. Two resource lists conflict if they share any
// entry; the scheduler never needs to know what a resource *means*.
type ResourceList []string

// Conflicts reports whether rl and other share any resource name.
func (rl ResourceList) Conflicts(other ResourceList) bool {
	if len(rl) == 0 || len(other) == 0 {
		return false
	}
	held := make(map[string]struct{}, len(other))
	for _, r := range other {
		held[r] = struct{}{}
	}
	for _, r := range rl {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// SubTask is a constituent of a Task that may be scheduled as part of a
// larger unit of work (e.g. a matrix configuration axis). The scheduler
// only needs enough of it to reason about placement.
type SubTask interface {
	FullDisplayName() string
	ResourceList() ResourceList
}

// Task is the opaque unit of work submitted to the queue. Implementations
// live outside this package; the scheduler only ever calls this capability
// set. Value-equality between tasks is defined by Equals, not by identity,
// and is what the admission path uses to detect duplicates.
type Task interface {
	// FullDisplayName uniquely identifies the task for logging, the
	// flyweight consistent-hash key, and persistence by name.
	FullDisplayName() string

	// AssignedLabel returns the label expression restricting which nodes
	// may run this task, or "" for no restriction.
	AssignedLabel() string

	// ResourceList returns the resources this task needs exclusively.
	ResourceList() ResourceList

	// CauseOfBlockage returns a human-readable reason the task cannot run
	// right now, or "" if the task itself has no opinion (dispatchers and
	// resource conflicts are checked separately).
	CauseOfBlockage() string

	// IsBuildBlocked reports whether the task vetoes running at all,
	// independent of resources or dispatchers.
	IsBuildBlocked() bool

	// IsConcurrentBuild reports whether more than one item for this task
	// may be buildable/pending simultaneously.
	IsConcurrentBuild() bool

	// SubTasks returns the constituents that make up one build of this
	// task (a single-element slice for ordinary tasks).
	SubTasks() []SubTask

	// EstimatedDuration is used by sorters/load balancers that want to
	// reason about throughput; it carries no scheduling semantics here.
	EstimatedDuration() time.Duration

	// IsPersistent reports whether items for this task survive restarts.
	// Tasks that return false are excluded from persistence (spec 4.9).
	IsPersistent() bool

	// IsFlyweight reports whether the task is executor-less and eligible
	// for the consistent-hash fast path (spec 4.7).
	IsFlyweight() bool

	// IsNonBlocking reports whether the task keeps running through a
	// controller quiesce (spec 4.7 step 1).
	IsNonBlocking() bool

	// Equals defines value-equality between tasks, used to coalesce
	// duplicate submissions and to enforce the one-item-per-task
	// concurrency guard. Implementations compare by value, not identity.
	Equals(other Task) bool
}

// Action is opaque per-request metadata attached to an item. Most actions
// carry no scheduling behavior; the three sub-capabilities below are
// queried by name via type assertion where it matters.
type Action interface{}

// QueueAction may veto duplicate coalescing: when a new submission matches
// an existing task, ShouldSchedule is consulted on both the existing and
// the new action list (each against the other) before the submission is
// folded into the existing item.
type QueueAction interface {
	Action
	ShouldSchedule(otherActions []Action) bool
}

// FoldableAction is merged into an existing queued item instead of being
// dropped when its submission turns out to be a duplicate.
type FoldableAction interface {
	Action
	FoldIntoExisting(item Item, task Task, actions []Action)
}

// LabelAssignmentAction overrides a task's default assigned label.
type LabelAssignmentAction interface {
	Action
	AssignedLabel(task Task) (label string, ok bool)
}

// PersistableAction is implemented by actions that opt into surviving
// save/load (spec 9, P6: "actions that survive the action-serialization
// contract"). ActionKind identifies the concrete action type on import;
// MarshalAction serializes its state to bytes the matching
// ActionUnmarshaler, registered separately via
// Queue.RegisterActionKind, can reconstruct from. Actions that don't
// implement this interface are simply dropped on save, the same way an
// unresolved task drops an entire item on load.
type PersistableAction interface {
	Action
	ActionKind() string
	MarshalAction() ([]byte, error)
}

// ActionUnmarshaler reconstructs an Action from the bytes a matching
// PersistableAction.MarshalAction produced.
type ActionUnmarshaler func(data []byte) (Action, error)

// stripNilActions removes nil entries (spec 4.1 step 1).
func stripNilActions(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// effectiveLabel returns the task's assigned label, overridden by the
// first LabelAssignmentAction that opts to do so.
func effectiveLabel(task Task, actions []Action) string {
	for _, a := range actions {
		if la, ok := a.(LabelAssignmentAction); ok {
			if label, ok := la.AssignedLabel(task); ok {
				return label
			}
		}
	}
	return task.AssignedLabel()
}
