package queue

import "log/slog"

// QueueDecisionHandler may veto admission of a task entirely (spec 4.1
// step 2, spec 6).
type QueueDecisionHandler interface {
	ShouldSchedule(task Task, actions []Action) bool
}

// QueueTaskDispatcher may veto running an item at all, or running it on a
// specific node, without vetoing the item's existence in the queue (spec
// 4.4, 4.6, spec 6).
type QueueTaskDispatcher interface {
	// CanRun returns a non-empty cause if item must not run anywhere
	// right now.
	CanRun(item Item) string
	// CanTake returns a non-empty cause if node must not take item.
	CanTake(node Node, item Item) string
}

// QueueSorter reorders the buildable list in place before assignment
// (spec 4.3 phase C, spec 6).
type QueueSorter interface {
	Sort(buildables []*BuildableItem)
}

// MappingWorksheet is the input a LoadBalancer reasons over: one
// buildable item and the JobOffers currently willing to take it.
type MappingWorksheet struct {
	Item       *BuildableItem
	Candidates []*JobOffer
}

// Mapping is a LoadBalancer's chosen assignment. Execute is called by
// maintain() with the item's WorkUnitContext, and is responsible for
// calling Set on every JobOffer it selects.
type Mapping interface {
	Execute(ctx *WorkUnitContext)
}

// LoadBalancer chooses which parked executors should take a buildable
// item, given a worksheet of willing candidates (spec 4.3 phase C, spec
// 6). Returns nil if no assignment can be made this pass.
type LoadBalancer interface {
	Map(task Task, ws *MappingWorksheet) Mapping
}

// safeCanTake isolates a misbehaving dispatcher: a panicking CanTake is
// treated as "no reason" (spec 7, SPEC_FULL 10), recovered and logged
// rather than crashing the maintenance loop.
func safeCanTake(d QueueTaskDispatcher, node Node, item Item) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatcher panicked during CanTake, treating as no objection",
				"panic", r, "item", item.ID())
			reason = ""
		}
	}()
	return d.CanTake(node, item)
}

// safeCanRun is the CanRun analogue of safeCanTake.
func safeCanRun(d QueueTaskDispatcher, item Item) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatcher panicked during CanRun, treating as no objection",
				"panic", r, "item", item.ID())
			reason = ""
		}
	}()
	return d.CanRun(item)
}

// ResourceController tracks the in-use resource conflict matrix (spec 5
// "shared-resource policy"). Reserve is called implicitly when an item
// moves from buildable to pending, through Queue.reserveResources;
// Release is called through Queue.Complete once the work that reserved
// a resource finishes, so it becomes available to the next conflicting
// task rather than staying held forever.
type ResourceController struct {
	held map[string]int
}

// NewResourceController returns an empty controller (no resources held).
func NewResourceController() *ResourceController {
	return &ResourceController{held: make(map[string]int)}
}

// CanRun reports whether required can be satisfied without conflicting
// with any currently-held resource.
func (rc *ResourceController) CanRun(required ResourceList) bool {
	for _, r := range required {
		if rc.held[r] > 0 {
			return false
		}
	}
	return true
}

// Reserve marks every resource in required as held, incrementing a
// refcount so overlapping holders compose correctly.
func (rc *ResourceController) Reserve(required ResourceList) {
	for _, r := range required {
		rc.held[r]++
	}
}

// Release undoes a prior Reserve.
func (rc *ResourceController) Release(required ResourceList) {
	for _, r := range required {
		if rc.held[r] > 0 {
			rc.held[r]--
		}
	}
}
