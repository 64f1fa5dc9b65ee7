package queue

// Node is the opaque fleet member the scheduler places work on. Node and
// executor implementations live outside this package (spec 1); the
// scheduler only observes the capabilities below.
type Node interface {
	// Name is used as the consistent-hash ring key for flyweight
	// placement and for label matching.
	Name() string

	// NumExecutors is the node's advertised executor count, used to
	// weight its position on the flyweight consistent-hash ring.
	NumExecutors() int

	// IsOnline reports whether the node currently has a live computer.
	IsOnline() bool

	// CanTake returns a non-empty reason the node refuses item, or ""
	// if the node has no objection.
	CanTake(item Item) string

	// MatchesLabel reports whether the node satisfies a label
	// expression ("" always matches).
	MatchesLabel(label string) bool

	// StartFlyweightTask starts unit directly on this node, bypassing
	// the normal executor-parking protocol. Used only by makeBuildable's
	// fast path (spec 4.7).
	StartFlyweightTask(unit *WorkUnit) error
}

// Executor is the opaque worker-side handle behind a JobOffer.
type Executor interface {
	// Node returns the node this executor belongs to, or nil if the
	// executor is about to die.
	Node() Node

	// IsOnline reports whether the owning computer is online.
	IsOnline() bool

	// IsAcceptingTasks reports whether the owning computer currently
	// accepts new work.
	IsAcceptingTasks() bool

	// OneOffAssignment returns a preassigned WorkUnit for one-off
	// executors (spec 4.8 step 1), or nil for ordinary executors.
	OneOffAssignment() *WorkUnit
}
