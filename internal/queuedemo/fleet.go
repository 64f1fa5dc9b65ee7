package queuedemo

import (
	"sync"

	"github.com/forgeci/buildqueue/internal/queue"
)

// Fleet is a demo queue.NodeProvider: a fixed master plus a set of
// worker nodes, registered explicitly.
type Fleet struct {
	mu     sync.RWMutex
	master *FleetNode
	nodes  []*FleetNode
}

// NewFleet returns a Fleet whose master node is master (may be nil to
// mean "no master node is eligible for flyweight placement").
func NewFleet(master *FleetNode) *Fleet {
	return &Fleet{master: master}
}

// Add registers n as an ordinary fleet node.
func (f *Fleet) Add(n *FleetNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, n)
}

func (f *Fleet) Nodes() []queue.Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]queue.Node, len(f.nodes))
	for i, n := range f.nodes {
		out[i] = n
	}
	return out
}

func (f *Fleet) Master() queue.Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.master == nil {
		return nil
	}
	return f.master
}
