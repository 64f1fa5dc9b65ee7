package queue

import (
	"testing"
	"time"
)

func TestSnapshotCacheRefreshesOnceAfterExpiry(t *testing.T) {
	var c snapshotCache
	calls := 0
	build := func() []Item {
		calls++
		return []Item{newFakeItem()}
	}

	now := time.Now()
	first := c.get(now, build)
	if len(first) != 1 || calls != 1 {
		t.Fatalf("expected the first call to build once, got calls=%d len=%d", calls, len(first))
	}

	// Within the staleness window: must not call build again.
	second := c.get(now.Add(100*time.Millisecond), build)
	if calls != 1 {
		t.Fatalf("expected cache hit within the staleness window, calls=%d", calls)
	}
	if len(second) != 1 {
		t.Fatalf("expected the cached items back, got %d", len(second))
	}

	// Past the window: must rebuild.
	third := c.get(now.Add(2*time.Second), build)
	if calls != 2 {
		t.Fatalf("expected a rebuild past the staleness window, calls=%d", calls)
	}
	if len(third) != 1 {
		t.Fatalf("expected rebuilt items back, got %d", len(third))
	}
}
