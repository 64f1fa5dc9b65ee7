package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// snapshotCache backs Queue.ApproximateItems (spec 4.10): a read-only
// view that is at most ~1 second stale, cheap enough for a UI to poll
// without contending with the scheduler's own read/write traffic.
type snapshotCache struct {
	expiresAtNano int64 // unix nanoseconds, CAS-guarded

	mu    sync.Mutex
	items []Item
}

// get returns the cached items if they are still within their staleness
// window; otherwise exactly one caller wins the CAS and refreshes the
// cache by calling build. Callers that lose the race, or that observe a
// miss without winning it, return whatever is currently cached — the
// staleness is bounded, not eliminated (spec 4.10 explicitly accepts
// this).
func (c *snapshotCache) get(now time.Time, build func() []Item) []Item {
	nowNano := now.UnixNano()
	expires := atomic.LoadInt64(&c.expiresAtNano)
	if nowNano < expires {
		return c.snapshot()
	}

	newExpiry := nowNano + int64(time.Second)
	if !atomic.CompareAndSwapInt64(&c.expiresAtNano, expires, newExpiry) {
		return c.snapshot()
	}

	items := build()
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return items
}

func (c *snapshotCache) snapshot() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}
