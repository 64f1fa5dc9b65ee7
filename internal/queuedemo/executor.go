package queuedemo

import (
	"sync"

	"github.com/forgeci/buildqueue/internal/queue"
)

// FleetExecutor is a minimal concrete Executor bound to a FleetNode.
type FleetExecutor struct {
	node *FleetNode

	mu       sync.Mutex
	accepts  bool
	oneOff   *queue.WorkUnit
}

// NewFleetExecutor returns an executor on node, accepting tasks.
func NewFleetExecutor(node *FleetNode) *FleetExecutor {
	return &FleetExecutor{node: node, accepts: true}
}

func (e *FleetExecutor) Node() queue.Node { return e.node }
func (e *FleetExecutor) IsOnline() bool   { return e.node.IsOnline() }

func (e *FleetExecutor) IsAcceptingTasks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accepts
}

// SetAccepting toggles whether this executor is willing to take new
// work, without taking it offline entirely.
func (e *FleetExecutor) SetAccepting(accepts bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accepts = accepts
}

// SetOneOffAssignment preassigns wu, turning this executor into a
// one-off that Pop returns immediately (spec 4.8 step 1).
func (e *FleetExecutor) SetOneOffAssignment(wu *queue.WorkUnit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.oneOff = wu
}

func (e *FleetExecutor) OneOffAssignment() *queue.WorkUnit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.oneOff
}
