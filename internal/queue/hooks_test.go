package queue

import "testing"

type fakeDispatcher struct {
	canRunReason  string
	canTakeReason string
	panicOnRun    bool
	panicOnTake   bool
}

func (d *fakeDispatcher) CanRun(item Item) string {
	if d.panicOnRun {
		panic("dispatcher exploded")
	}
	return d.canRunReason
}

func (d *fakeDispatcher) CanTake(node Node, item Item) string {
	if d.panicOnTake {
		panic("dispatcher exploded")
	}
	return d.canTakeReason
}

func newFakeItem() Item {
	return &BuildableItem{payload: payload{id: 1, task: newFakeTask("t"), future: NewFuture()}}
}

func TestSafeCanRunPassesThroughReason(t *testing.T) {
	d := &fakeDispatcher{canRunReason: "busy"}
	if got := safeCanRun(d, newFakeItem()); got != "busy" {
		t.Fatalf("expected reason to pass through, got %q", got)
	}
}

func TestSafeCanRunRecoversPanic(t *testing.T) {
	d := &fakeDispatcher{panicOnRun: true}
	got := safeCanRun(d, newFakeItem())
	if got != "" {
		t.Fatalf("expected a panicking dispatcher to be treated as no objection, got %q", got)
	}
}

func TestSafeCanTakeRecoversPanic(t *testing.T) {
	d := &fakeDispatcher{panicOnTake: true}
	got := safeCanTake(d, newFakeNode("n", 1), newFakeItem())
	if got != "" {
		t.Fatalf("expected a panicking dispatcher to be treated as no objection, got %q", got)
	}
}

func TestResourceControllerReserveRelease(t *testing.T) {
	rc := NewResourceController()
	res := ResourceList{"gpu"}

	if !rc.CanRun(res) {
		t.Fatal("expected an unreserved resource to be runnable")
	}
	rc.Reserve(res)
	if rc.CanRun(res) {
		t.Fatal("expected a reserved resource to block further runs")
	}
	rc.Release(res)
	if !rc.CanRun(res) {
		t.Fatal("expected releasing the only reservation to allow running again")
	}
}

func TestResourceControllerReferenceCounts(t *testing.T) {
	rc := NewResourceController()
	res := ResourceList{"gpu"}

	rc.Reserve(res)
	rc.Reserve(res)
	rc.Release(res)
	if rc.CanRun(res) {
		t.Fatal("expected the resource to still be held after one of two releases")
	}
	rc.Release(res)
	if !rc.CanRun(res) {
		t.Fatal("expected the resource to be free after both reservations are released")
	}
}
