package queue

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// NodeProvider supplies the fleet view makeBuildable needs to place
// flyweight tasks (spec 4.7). Registering one is optional: without it,
// flyweight tasks simply fall through to the normal buildable path.
type NodeProvider interface {
	Nodes() []Node
	Master() Node
}

// Queue is the central scheduler: the four-stage item store, the parked
// executor registry, and the pluggable extension points, behind a single
// fair reader-writer lock (spec 5). Go's sync.RWMutex already blocks new
// readers once a writer is waiting, which gives it the writer-starvation
// guarantee spec 5 asks for; no third-party fair-lock variant appears
// anywhere in the retrieved corpus, so this is the stdlib primitive used
// as-is.
//
// mu guards the store and the parked-offer map. extMu is a second,
// separate lock guarding the registered extension points (handlers,
// dispatchers, sorter, load balancer, node provider, quiescing flag), so
// registering or reading an extension point never waits on mu.
// QueueDecisionHandler.ShouldSchedule runs before mu is taken; the
// maintenance phases call CanRun, CanTake, Sort and Map while mu is held
// for writing, so a call from one of them back into a Queue method that
// takes mu deadlocks.
// opMu is the coarser lock from spec 5 serializing maintain() and pop()
// against each other, one level above mu.
type Queue struct {
	mu   sync.RWMutex
	opMu sync.Mutex

	store     *ItemStore
	ids       idAllocator
	resources *ResourceController
	reserved  map[uint64]ResourceList
	parked    map[Executor]*JobOffer

	extMu       sync.RWMutex
	handlers    []QueueDecisionHandler
	dispatchers []QueueTaskDispatcher
	sorter      QueueSorter
	balancer    LoadBalancer
	nodes       NodeProvider
	quiescing   bool
	actionKinds map[string]ActionUnmarshaler

	resourceGroups map[string][]string
	nodeWeights    map[string]int

	cache snapshotCache

	logger    *slog.Logger
	timerStop chan struct{}
	closeOnce sync.Once
}

// NewQueue returns an empty Queue with the given load balancer (a
// RoundRobinBalancer if nil) and logger (slog.Default() if nil), and
// starts the 5-second liveness timer described in spec 5. Close stops
// the timer explicitly; a finalizer also stops it if the Queue is
// garbage-collected without an explicit Close, mirroring the original's
// weak-referenced timer.
func NewQueue(balancer LoadBalancer, logger *slog.Logger) *Queue {
	if balancer == nil {
		balancer = NewRoundRobinBalancer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		store:     NewItemStore(),
		resources: NewResourceController(),
		reserved:  make(map[uint64]ResourceList),
		parked:    make(map[Executor]*JobOffer),
		balancer:  balancer,
		logger:    logger,
		timerStop: make(chan struct{}),
	}
	q.startLivenessTimer(5 * time.Second)
	runtime.SetFinalizer(q, func(q *Queue) { q.Close() })
	return q
}

// Close stops the liveness timer. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.timerStop) })
}

func (q *Queue) startLivenessTimer(interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				q.Maintain()
			case <-q.timerStop:
				return
			}
		}
	}()
}

// --- extension point registry ---

// AddDecisionHandler registers h; every handler is consulted on every
// Schedule call (spec 4.1 step 2, spec 6).
func (q *Queue) AddDecisionHandler(h QueueDecisionHandler) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.handlers = append(q.handlers, h)
}

// AddDispatcher registers d; every dispatcher is consulted during block
// evaluation and offer matching (spec 4.4, 4.6, spec 6).
func (q *Queue) AddDispatcher(d QueueTaskDispatcher) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.dispatchers = append(q.dispatchers, d)
}

// SetSorter installs the buildable-list sorter (nil disables sorting).
func (q *Queue) SetSorter(s QueueSorter) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.sorter = s
}

// Sorter returns the currently installed sorter, or nil.
func (q *Queue) Sorter() QueueSorter {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	return q.sorter
}

// SetLoadBalancer installs the assignment strategy.
func (q *Queue) SetLoadBalancer(b LoadBalancer) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.balancer = b
}

// LoadBalancer returns the currently installed assignment strategy.
func (q *Queue) LoadBalancer() LoadBalancer {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	return q.balancer
}

// SetNodeProvider installs the fleet view used by the flyweight fast
// path. Pass nil to disable flyweight placement entirely.
func (q *Queue) SetNodeProvider(np NodeProvider) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.nodes = np
}

// SetQuiescing toggles whether the controller is quiescing; while true,
// makeBuildable skips the flyweight fast path (spec 4.7 step 1).
func (q *Queue) SetQuiescing(v bool) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.quiescing = v
}

// RegisterActionKind installs unmarshal as the reconstructor for
// PersistableAction values saved under kind, so Import can round-trip
// them (spec 9, P6). Registering the same kind twice replaces the
// earlier unmarshaler.
func (q *Queue) RegisterActionKind(kind string, unmarshal ActionUnmarshaler) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	if q.actionKinds == nil {
		q.actionKinds = make(map[string]ActionUnmarshaler)
	}
	q.actionKinds[kind] = unmarshal
}

func (q *Queue) actionUnmarshaler(kind string) (ActionUnmarshaler, bool) {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	u, ok := q.actionKinds[kind]
	return u, ok
}

// SetResourceGroups installs named resource groups from declarative
// policy (queueconfig.Policy.Resources): reserving or checking any
// resource name that is also a group name implicitly reserves/checks
// every resource that group holds too, so a task can conflict with a
// whole pool of equivalent resources by naming the pool once.
func (q *Queue) SetResourceGroups(groups map[string][]string) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.resourceGroups = groups
}

// expandResources widens required by one level of resource-group
// membership.
func (q *Queue) expandResources(required ResourceList) ResourceList {
	if len(required) == 0 {
		return required
	}
	q.extMu.RLock()
	groups := q.resourceGroups
	q.extMu.RUnlock()
	if len(groups) == 0 {
		return required
	}

	seen := make(map[string]struct{}, len(required))
	out := make(ResourceList, 0, len(required))
	add := func(r string) {
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	for _, r := range required {
		add(r)
		for _, held := range groups[r] {
			add(held)
		}
	}
	return out
}

// SetNodeWeights overrides the consistent-hash ring weight used for
// flyweight placement (from declarative policy,
// queueconfig.Policy.NodeWeights), taking precedence over the default
// weight derived from a node's executor count.
func (q *Queue) SetNodeWeights(weights map[string]int) {
	q.extMu.Lock()
	defer q.extMu.Unlock()
	q.nodeWeights = weights
}

func (q *Queue) nodeWeightsSnapshot() map[string]int {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	return q.nodeWeights
}

func (q *Queue) handlersSnapshot() []QueueDecisionHandler {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	out := make([]QueueDecisionHandler, len(q.handlers))
	copy(out, q.handlers)
	return out
}

func (q *Queue) dispatchersSnapshot() []QueueTaskDispatcher {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	out := make([]QueueTaskDispatcher, len(q.dispatchers))
	copy(out, q.dispatchers)
	return out
}

func (q *Queue) nodeProviderSnapshot() NodeProvider {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	return q.nodes
}

func (q *Queue) isQuiescing() bool {
	q.extMu.RLock()
	defer q.extMu.RUnlock()
	return q.quiescing
}

// --- admission (spec 4.1) ---

// Schedule admits task, coalescing it into any matching duplicate
// already in the queue. It returns the new WaitingItem, or nil if the
// task was vetoed by a decision handler or folded into an existing item.
func (q *Queue) Schedule(task Task, quietPeriod time.Duration, actions ...Action) Item {
	actions = stripNilActions(actions)
	for _, h := range q.handlersSnapshot() {
		if !h.ShouldSchedule(task, actions) {
			return nil
		}
	}

	if quietPeriod < 0 {
		quietPeriod = 0
	}
	due := time.Now().Add(quietPeriod)

	q.mu.Lock()
	defer q.mu.Unlock()

	var duplicates []Item
	for _, it := range q.store.ItemsForTask(task) {
		should := false
		for _, a := range it.Actions() {
			if qa, ok := a.(QueueAction); ok {
				should = should || qa.ShouldSchedule(actions)
			}
		}
		for _, a := range actions {
			if qa, ok := a.(QueueAction); ok {
				should = should || qa.ShouldSchedule(it.Actions())
			}
		}
		if !should {
			duplicates = append(duplicates, it)
		}
	}

	if len(duplicates) == 0 {
		id := q.ids.allocate()
		w := &WaitingItem{
			payload: payload{
				id:           id,
				task:         task,
				actions:      actions,
				future:       NewFuture(),
				inQueueSince: time.Now(),
			},
			DueAt: due,
		}
		q.store.InsertWaiting(w)
		q.logger.Debug("item queued", "task", task.FullDisplayName(), "id", id)
		q.scheduleMaintenanceLocked()
		return w
	}

	q.logger.Debug("duplicate submission folded", "task", task.FullDisplayName())
	for _, dup := range duplicates {
		for _, a := range actions {
			if fa, ok := a.(FoldableAction); ok {
				fa.FoldIntoExisting(dup, task, actions)
			}
		}
	}

	updated := false
	for _, dup := range duplicates {
		wi, ok := dup.(*WaitingItem)
		if !ok {
			continue
		}
		if quietPeriod <= 0 {
			if wi.DueAt.Before(due) {
				continue // already earlier than due; never push later
			}
		} else {
			if wi.DueAt.After(due) {
				continue // already later than due; never pull earlier
			}
		}
		wi.DueAt = due
		updated = true
	}
	if updated {
		q.store.Resort()
		q.scheduleMaintenanceLocked()
	}
	return nil
}

// --- cancellation (spec 4.2) ---

// Cancel removes the first waiting, blocked, or buildable item for task
// and resolves its future as cancelled.
func (q *Queue) Cancel(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.store.RemoveTaskFromWaitingBlockedBuildable(task)
	if !ok {
		return false
	}
	it.Future().resolve(OutcomeCancelled)
	q.logger.Debug("item cancelled", "task", task.FullDisplayName(), "id", it.ID())
	return true
}

// CancelItem removes item by identity from waiting, blocked, or
// buildable, resolving its future as cancelled. Pending items cannot be
// cancelled this way (spec 4.2): the dispatched executor owns the work
// unit and must be aborted through its context instead.
func (q *Queue) CancelItem(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.store.RemoveFromWaitingBlockedBuildable(item) {
		return false
	}
	item.Future().resolve(OutcomeCancelled)
	return true
}

// Clear cancels every waiting, blocked, and buildable item, leaving
// pending items untouched, and triggers maintenance. Futures are
// resolved before the store is swapped, inside the same write-locked
// span, so no reader can observe an item already absent from Items()
// while its future is still unresolved (invariant 7), matching
// Cancel/CancelItem above.
func (q *Queue) Clear() {
	q.mu.Lock()
	waiting := q.store.WaitingItems()
	blocked := q.store.BlockedItems()
	buildable := q.store.BuildableItems()

	for _, w := range waiting {
		w.Future().resolve(OutcomeCancelled)
	}
	for _, b := range blocked {
		b.Future().resolve(OutcomeCancelled)
	}
	for _, b := range buildable {
		b.Future().resolve(OutcomeCancelled)
	}

	ns := NewItemStore()
	for _, p := range q.store.PendingItems() {
		ns.AddPending(p)
	}
	q.store = ns
	q.mu.Unlock()

	q.ScheduleMaintenance()
}

// --- queries (spec 6) ---

// Items returns every item across all four stages.
func (q *Queue) Items() []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.AllItems()
}

// ItemsFor returns every item for task, across all stages.
func (q *Queue) ItemsFor(task Task) []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.ItemsForTask(task)
}

// ItemByID returns the item with the given id, if any.
func (q *Queue) ItemByID(id uint64) (Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.ItemByID(id)
}

// ItemForTask returns the first item for task, if any.
func (q *Queue) ItemForTask(task Task) (Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.ItemForTask(task)
}

// Contains reports whether task has any item in the queue.
func (q *Queue) Contains(task Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.ContainsTask(task)
}

// IsEmpty reports whether every stage is empty.
func (q *Queue) IsEmpty() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.IsEmpty()
}

// IsPending reports whether task has a pending item.
func (q *Queue) IsPending(task Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.ContainsPendingTask(task)
}

// BuildableItems returns a snapshot of the buildable set.
func (q *Queue) BuildableItems() []*BuildableItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.BuildableItems()
}

// BuildableItemsFor returns the buildable items whose label node
// satisfies (spec 6: `buildableItems(computer)`).
func (q *Queue) BuildableItemsFor(node Node) []*BuildableItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*BuildableItem
	for _, b := range q.store.BuildableItems() {
		if node.MatchesLabel(b.Label()) {
			out = append(out, b)
		}
	}
	return out
}

// PendingItems returns a snapshot of the pending set.
func (q *Queue) PendingItems() []*PendingItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.PendingItems()
}

// UnblockedItems returns every buildable and pending item.
func (q *Queue) UnblockedItems() []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Item, 0, 8)
	for _, b := range q.store.BuildableItems() {
		out = append(out, b)
	}
	for _, p := range q.store.PendingItems() {
		out = append(out, p)
	}
	return out
}

// UnblockedTasks returns the distinct tasks behind UnblockedItems.
func (q *Queue) UnblockedTasks() []Task {
	items := q.UnblockedItems()
	out := make([]Task, 0, len(items))
	for _, it := range items {
		dup := false
		for _, t := range out {
			if t.Equals(it.Task()) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it.Task())
		}
	}
	return out
}

// CountBuildableItems returns the size of the buildable set.
func (q *Queue) CountBuildableItems() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.store.BuildableItems())
}

// CountBuildableItemsFor returns the number of buildable items whose
// effective label equals label.
func (q *Queue) CountBuildableItemsFor(label string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, b := range q.store.BuildableItems() {
		if b.Label() == label {
			n++
		}
	}
	return n
}

// ApproximateItems returns a bounded-staleness view of every item (spec
// 4.10), implemented in snapshot.go.
func (q *Queue) ApproximateItems() []Item {
	return q.cache.get(time.Now(), func() []Item {
		q.mu.RLock()
		defer q.mu.RUnlock()
		items := q.store.AllItems()
		out := make([]Item, len(items))
		copy(out, items)
		return out
	})
}

// --- maintenance (spec 4.3, 4.4, 4.5, 4.7) ---

// Maintain runs the three-phase maintenance pass. It is serialized
// against Pop by opMu (spec 5): only one of Maintain or Pop's inline
// maintenance call may run at a time.
func (q *Queue) Maintain() {
	q.opMu.Lock()
	defer q.opMu.Unlock()

	now := time.Now()
	q.unblockPhase(now)
	q.drainWaitingPhase(now)
	q.dispatchPhase(now)
}

// unblockPhase is maintenance phase A: blocked items that are no longer
// blocked, and whose task still permits another concurrent build, are
// promoted to buildable (or placed flyweight-style into pending).
func (q *Queue) unblockPhase(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range q.store.BlockedItems() {
		if q.isStillBlocked(b) || !q.concurrencyAllows(b.Task()) {
			continue
		}
		if q.store.RemoveBlocked(b) {
			q.makeBuildable(b, now)
		}
	}
}

// drainWaitingPhase is maintenance phase B: every waiting item whose due
// time has arrived is removed and either promoted or demoted to
// blocked.
func (q *Queue) drainWaitingPhase(now time.Time) {
	for {
		q.mu.Lock()
		top, ok := q.store.PeekWaiting()
		if !ok || top.DueAt.After(now) {
			q.mu.Unlock()
			return
		}
		q.store.PopWaiting()
		if !q.isStillBlocked(top) && q.concurrencyAllows(top.Task()) {
			q.makeBuildable(top, now)
		} else {
			q.store.AddBlocked(toBlocked(top, now))
		}
		q.mu.Unlock()
	}
}

// dispatchPhase is maintenance phase C: buildable items are matched
// against parked offers via the load balancer.
func (q *Queue) dispatchPhase(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	buildables := q.store.BuildableItems()
	if sorter := q.Sorter(); sorter != nil {
		sorter.Sort(buildables)
	}
	dispatchers := q.dispatchersSnapshot()
	balancer := q.LoadBalancer()

	for _, b := range buildables {
		if q.isStillBlocked(b) {
			if q.store.RemoveBuildable(b) {
				q.store.AddBlocked(toBlocked(b, now))
			}
			continue
		}

		var candidates []*JobOffer
		for _, offer := range q.parked {
			if offer.CanTake(b, dispatchers) {
				candidates = append(candidates, offer)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		ws := &MappingWorksheet{Item: b, Candidates: candidates}
		mapping := balancer.Map(b.Task(), ws)
		if mapping == nil {
			continue
		}

		ctx := NewWorkUnitContext(b)
		mapping.Execute(ctx)

		hasMain := false
		for _, u := range ctx.WorkUnits() {
			if u.IsMainWork {
				hasMain = true
				break
			}
		}
		if hasMain && q.store.RemoveBuildable(b) {
			p := toPending(b)
			q.store.AddPending(p)
			q.reserveResources(p.ID(), p.Task().ResourceList())
		}
	}
}

// isStillBlocked implements spec 4.4. Callers must hold q.mu.
func (q *Queue) isStillBlocked(item Item) bool {
	if item.Task().IsBuildBlocked() {
		return true
	}
	if !q.resources.CanRun(q.expandResources(item.Task().ResourceList())) {
		return true
	}
	for _, d := range q.dispatchersSnapshot() {
		if safeCanRun(d, item) != "" {
			return true
		}
	}
	return false
}

// concurrencyAllows implements spec 4.5. Callers must hold q.mu.
func (q *Queue) concurrencyAllows(task Task) bool {
	if task.IsConcurrentBuild() {
		return true
	}
	return !q.store.ContainsBuildableTask(task) && !q.store.ContainsPendingTask(task)
}

// reserveResources marks required as held against id, remembering the
// association so Complete can release exactly what this item reserved
// once its build finishes. Callers must hold q.mu for writing.
func (q *Queue) reserveResources(id uint64, required ResourceList) {
	required = q.expandResources(required)
	if len(required) == 0 {
		return
	}
	q.resources.Reserve(required)
	q.reserved[id] = required
}

// makeBuildable implements spec 4.7: flyweight tasks try consistent-hash
// placement directly onto a node before falling back to the ordinary
// buildable path. Callers must hold q.mu for writing.
func (q *Queue) makeBuildable(item Item, now time.Time) {
	task := item.Task()
	if task.IsFlyweight() && (task.IsNonBlocking() || !q.isQuiescing()) {
		if np := q.nodeProviderSnapshot(); np != nil {
			if node := q.flyweightPlacement(np, item); node != nil {
				b := toBuildable(item, now)
				wu := &WorkUnit{SubTask: soloSubTask{task}, IsMainWork: true}
				wu.Context = NewWorkUnitContext(b)
				if err := node.StartFlyweightTask(wu); err == nil {
					p := toPending(b)
					q.store.AddPending(p)
					q.reserveResources(p.ID(), task.ResourceList())
					q.logger.Debug("flyweight task placed", "task", task.FullDisplayName(), "node", node.Name())
					return
				}
				q.logger.Warn("flyweight start failed, falling back to buildable",
					"task", task.FullDisplayName(), "node", node.Name())
			}
		}
	}
	q.store.AddBuildable(toBuildable(item, now))
}

// flyweightPlacement builds the weighted consistent-hash ring over the
// current fleet (master always included) and returns the first node
// along the ring from task's hash that accepts item, or nil.
func (q *Queue) flyweightPlacement(np NodeProvider, item Item) Node {
	ring := newConsistentHash()
	master := np.Master()
	haveMaster := false
	weights := q.nodeWeightsSnapshot()
	for _, n := range np.Nodes() {
		weight := n.NumExecutors()
		if weight < 1 {
			weight = 1
		}
		if w, ok := weights[n.Name()]; ok && w > 0 {
			weight = w
		}
		ring.add(n, weight*100)
		if master != nil && n.Name() == master.Name() {
			haveMaster = true
		}
	}
	if master != nil && !haveMaster {
		ring.add(master, 100)
	}

	for _, n := range ring.list(item.Task().FullDisplayName()) {
		if !n.IsOnline() {
			continue
		}
		if !n.MatchesLabel(item.Label()) {
			continue
		}
		if reason := n.CanTake(item); reason != "" {
			continue
		}
		return n
	}
	return nil
}

// ScheduleMaintenance wakes exactly one idle parked offer (spec 4.3,
// "Open Questions": which one is unspecified).
func (q *Queue) ScheduleMaintenance() {
	q.mu.RLock()
	defer q.mu.RUnlock()
	q.scheduleMaintenanceLocked()
}

func (q *Queue) scheduleMaintenanceLocked() {
	for _, offer := range q.parked {
		if offer.WorkUnit() == nil {
			offer.Signal()
			return
		}
	}
}

// --- executor parking (spec 4.8) ---

// Pop blocks until exec is handed a WorkUnit, or ctx is done. A one-off
// executor with a preassigned unit returns immediately without parking.
// If ctx is cancelled while exec is parked with an assignment already
// set, that assignment's WorkUnitContext is aborted and one more
// maintenance pass is scheduled so another executor can take over (spec
// 4.8 step 3).
func (q *Queue) Pop(ctx context.Context, exec Executor) (*WorkUnit, error) {
	if wu := exec.OneOffAssignment(); wu != nil {
		if wu.Context != nil && wu.Context.Item != nil {
			q.mu.Lock()
			q.store.RemovePendingByID(wu.Context.Item.ID())
			q.mu.Unlock()
			if f := wu.Context.Item.Future(); f != nil {
				f.resolve(OutcomeStarted)
			}
		}
		return wu, nil
	}

	for {
		offer := NewJobOffer(exec)
		q.mu.Lock()
		if _, exists := q.parked[exec]; exists {
			q.mu.Unlock()
			panic("queue: executor already has a parked offer")
		}
		q.parked[exec] = offer
		q.mu.Unlock()

		q.Maintain()

		sleep := q.nextWakeDelay()
		aborted := !waitOffer(offer, sleep, ctx)

		q.mu.Lock()
		delete(q.parked, exec)
		q.mu.Unlock()

		wu := offer.WorkUnit()
		if aborted {
			if wu != nil {
				wu.Context.Abort("executor stopped while parked")
			}
			q.ScheduleMaintenance()
			return nil, ctx.Err()
		}
		if wu == nil {
			continue // spurious wake for maintenance; park again
		}
		if wu.IsMainWork {
			q.mu.Lock()
			q.store.RemovePendingByID(wu.Context.Item.ID())
			q.mu.Unlock()
			if f := wu.Context.Item.Future(); f != nil {
				f.resolve(OutcomeStarted)
			}
		}
		return wu, nil
	}
}

// Complete releases whatever resources were reserved for the item with
// the given id and wakes maintenance so anything blocked on them can
// proceed. Pop only signals that an item was handed to an executor, not
// that the underlying build finished, so nothing in this package can
// call Complete on an item's behalf: whoever owns the executor lifecycle
// (an in-process caller, or an HTTP handler fed by an external build
// agent reporting back) must call it once the work is done. Complete is
// a no-op, reporting false, for an id that reserved nothing or already
// completed.
func (q *Queue) Complete(id uint64) bool {
	q.mu.Lock()
	required, ok := q.reserved[id]
	if ok {
		delete(q.reserved, id)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	q.resources.Release(required)
	q.ScheduleMaintenance()
	return true
}

func (q *Queue) nextWakeDelay() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()
	top, ok := q.store.PeekWaiting()
	if !ok {
		return -1
	}
	d := time.Until(top.DueAt)
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

// waitOffer blocks until offer wakes, timeout elapses (timeout < 0 means
// no timeout), or ctx is done. It reports true on a normal wake/timeout,
// false if ctx ended the wait first.
func waitOffer(offer *JobOffer, timeout time.Duration, ctx context.Context) bool {
	if timeout < 0 {
		select {
		case <-offer.wake:
			return true
		case <-ctx.Done():
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-offer.wake:
		return true
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
