package queuedemo

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/forgeci/buildqueue/internal/queue"
	"github.com/forgeci/buildqueue/internal/queueconfig"
)

// FleetNode is a minimal concrete Node: a fixed executor count and
// online flag, with in-memory label matching.
type FleetNode struct {
	name      string
	executors int32
	labels    map[string]bool

	mu      sync.Mutex
	online  bool
	busy    int32
}

// NewFleetNode returns an online node named name with the given
// executor count and labels it satisfies.
func NewFleetNode(name string, executors int, labels ...string) *FleetNode {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return &FleetNode{name: name, executors: int32(executors), labels: set, online: true}
}

func (n *FleetNode) Name() string       { return n.name }
func (n *FleetNode) NumExecutors() int  { return int(n.executors) }

// SetOnline flips the node's online flag, used by tests exercising
// offline fallback during flyweight placement and dispatch.
func (n *FleetNode) SetOnline(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = online
}

func (n *FleetNode) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// MatchesLabel evaluates label as a boolean expression over this node's
// label set (e.g. "linux && large"), falling back to a plain "no
// restriction" match for an empty expression. A malformed expression is
// treated as a non-match rather than propagating a parse error, since
// Node.MatchesLabel has no error return.
func (n *FleetNode) MatchesLabel(label string) bool {
	ok, err := queueconfig.MatchesExpression(label, n.labels)
	if err != nil {
		return false
	}
	return ok
}

// CanTake refuses an item if the node is offline or its busy count has
// reached its executor count. FleetNode never increments its busy
// count, so the capacity refusal applies only to a node with zero
// executors. FleetNode tracks no resources, so a resource conflict is
// never a reason here.
func (n *FleetNode) CanTake(item queue.Item) string {
	if !n.IsOnline() {
		return "node offline"
	}
	if atomic.LoadInt32(&n.busy) >= n.executors {
		return "no free executors"
	}
	return ""
}

// StartFlyweightTask runs unit's subtask directly, bypassing the
// executor-parking protocol (spec 4.7). The demo node accepts unit
// without running anything; it fails only when the node is offline.
func (n *FleetNode) StartFlyweightTask(unit *queue.WorkUnit) error {
	if !n.IsOnline() {
		return fmt.Errorf("queuedemo: node %s is offline", n.name)
	}
	return nil
}
