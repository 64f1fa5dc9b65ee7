package queue

import "testing"

func TestRoundRobinBalancerDeclinesWithNoCandidates(t *testing.T) {
	rr := NewRoundRobinBalancer()
	ws := &MappingWorksheet{}
	if m := rr.Map(newFakeTask("t"), ws); m != nil {
		t.Fatal("expected nil mapping with no candidates")
	}
}

func TestRoundRobinBalancerAssignsSingleSubtask(t *testing.T) {
	rr := NewRoundRobinBalancer()
	offerA := NewJobOffer(newFakeExecutor(newFakeNode("a", 1)))
	offerB := NewJobOffer(newFakeExecutor(newFakeNode("b", 1)))

	task := newFakeTask("t")
	ws := &MappingWorksheet{Candidates: []*JobOffer{offerA, offerB}}
	mapping := rr.Map(task, ws)
	if mapping == nil {
		t.Fatal("expected a mapping with available candidates")
	}

	item := &BuildableItem{payload: payload{id: 1, task: task, future: NewFuture()}}
	ctx := NewWorkUnitContext(item)
	mapping.Execute(ctx)

	units := ctx.WorkUnits()
	if len(units) != 1 || !units[0].IsMainWork {
		t.Fatalf("expected exactly one main work unit, got %+v", units)
	}
	if offerA.WorkUnit() == nil && offerB.WorkUnit() == nil {
		t.Fatal("expected one of the two offers to receive the assignment")
	}
}

func TestRoundRobinBalancerRotatesAcrossCalls(t *testing.T) {
	rr := NewRoundRobinBalancer()
	offerA := NewJobOffer(newFakeExecutor(newFakeNode("a", 1)))
	offerB := NewJobOffer(newFakeExecutor(newFakeNode("b", 1)))
	ws := &MappingWorksheet{Candidates: []*JobOffer{offerA, offerB}}
	task := newFakeTask("t")

	first := rr.Map(task, ws)
	item1 := &BuildableItem{payload: payload{id: 1, task: task, future: NewFuture()}}
	first.Execute(NewWorkUnitContext(item1))

	second := rr.Map(task, ws)
	item2 := &BuildableItem{payload: payload{id: 2, task: task, future: NewFuture()}}
	second.Execute(NewWorkUnitContext(item2))

	if offerA.WorkUnit() == nil || offerB.WorkUnit() == nil {
		t.Fatal("expected round-robin to have assigned both offers across two calls")
	}
}

func TestRoundRobinBalancerDeclinesWhenMoreSubtasksThanCandidates(t *testing.T) {
	rr := NewRoundRobinBalancer()
	offerA := NewJobOffer(newFakeExecutor(newFakeNode("a", 1)))
	task := newFakeTask("t")
	task.subtasks = []SubTask{soloSubTask{task}, soloSubTask{task}}

	ws := &MappingWorksheet{Candidates: []*JobOffer{offerA}}
	if m := rr.Map(task, ws); m != nil {
		t.Fatal("expected nil mapping when subtasks outnumber candidates")
	}
}
