package queuedemo

import (
	"testing"

	"github.com/forgeci/buildqueue/internal/queue"
)

func TestFleetExecutorAcceptingDefaultsTrue(t *testing.T) {
	exec := NewFleetExecutor(NewFleetNode("n", 1))
	if !exec.IsAcceptingTasks() {
		t.Fatal("expected a fresh executor to accept tasks by default")
	}
}

func TestFleetExecutorSetAccepting(t *testing.T) {
	exec := NewFleetExecutor(NewFleetNode("n", 1))
	exec.SetAccepting(false)
	if exec.IsAcceptingTasks() {
		t.Fatal("expected SetAccepting(false) to stop accepting tasks")
	}
	exec.SetAccepting(true)
	if !exec.IsAcceptingTasks() {
		t.Fatal("expected SetAccepting(true) to resume accepting tasks")
	}
}

func TestFleetExecutorOneOffAssignment(t *testing.T) {
	exec := NewFleetExecutor(NewFleetNode("n", 1))
	if exec.OneOffAssignment() != nil {
		t.Fatal("expected a fresh executor to have no one-off assignment")
	}
	unit := &queue.WorkUnit{}
	exec.SetOneOffAssignment(unit)
	if exec.OneOffAssignment() != unit {
		t.Fatal("expected OneOffAssignment to return the assigned unit")
	}
}

func TestFleetExecutorIsOnlineTracksNode(t *testing.T) {
	node := NewFleetNode("n", 1)
	exec := NewFleetExecutor(node)
	if !exec.IsOnline() {
		t.Fatal("expected the executor to report online while its node is online")
	}
	node.SetOnline(false)
	if exec.IsOnline() {
		t.Fatal("expected the executor to report offline once its node goes offline")
	}
}
