package queue

import (
	"testing"
	"time"
)

func TestStageString(t *testing.T) {
	cases := map[Stage]string{
		StageWaiting:   "waiting",
		StageBlocked:   "blocked",
		StageBuildable: "buildable",
		StagePending:   "pending",
		Stage(99):      "unknown",
	}
	for stage, want := range cases {
		if got := stage.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", stage, got, want)
		}
	}
}

func TestIDAllocatorMonotonic(t *testing.T) {
	var a idAllocator
	first := a.allocate()
	second := a.allocate()
	if second <= first {
		t.Fatalf("expected strictly increasing ids, got %d then %d", first, second)
	}
}

func TestIDAllocatorSeedNeverRewindsBelowCurrent(t *testing.T) {
	var a idAllocator
	a.allocate() // next == 1
	a.allocate() // next == 2

	a.seed(1) // lower than current, must be a no-op
	if got := a.allocate(); got != 3 {
		t.Fatalf("seed with a lower id rewound the allocator: got %d", got)
	}

	a.seed(100)
	if got := a.allocate(); got != 101 {
		t.Fatalf("expected allocator to resume above seeded value, got %d", got)
	}
}

func TestFutureResolvesOnce(t *testing.T) {
	f := NewFuture()
	f.resolve(OutcomeCancelled)
	f.resolve(OutcomeStarted) // must be a no-op, future already resolved

	if f.Outcome() != OutcomeCancelled {
		t.Fatalf("expected first resolution to stick, got %v", f.Outcome())
	}
	if !f.IsCancelled() {
		t.Fatal("expected IsCancelled to be true")
	}
	select {
	case <-f.Done():
	default:
		t.Fatal("expected Done channel to be closed")
	}
}

func TestStageTransitionsPreserveIdentity(t *testing.T) {
	task := newFakeTask("build-a")
	w := &WaitingItem{
		payload: payload{id: 7, task: task, future: NewFuture()},
	}

	now := time.Now()
	b := toBlocked(w, now)
	if b.ID() != 7 || !b.Task().Equals(task) {
		t.Fatal("expected id and task to survive the waiting->blocked transition")
	}

	buildable := toBuildable(b, now.Add(time.Second))
	if buildable.ID() != 7 || buildable.EnteredNonWaitingAt != b.EnteredNonWaitingAt {
		t.Fatal("expected EnteredNonWaitingAt to carry forward from blocked->buildable")
	}

	pending := toPending(buildable)
	if pending.ID() != 7 || pending.EnteredNonWaitingAt != buildable.EnteredNonWaitingAt {
		t.Fatal("expected EnteredNonWaitingAt to carry forward from buildable->pending")
	}
}
