// Package queuedemo provides reference Task, Node, and Executor
// implementations used by the scheduler's own tests and by the
// cmd/scheduler demo wiring. Real deployments are expected to supply
// their own; nothing in internal/queue depends on this package.
package queuedemo

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgeci/buildqueue/internal/queue"
)

// BuildTask is a minimal concrete Task: a named pipeline run with an
// optional label restriction and resource list. Two BuildTasks are
// Equals if they share a Name, matching the "re-running the same
// pipeline coalesces" behavior admission relies on.
type BuildTask struct {
	ID         string
	Name       string
	Label      string
	Resources  queue.ResourceList
	Concurrent bool
	Flyweight  bool
	NonBlock   bool
	Persistent bool
	Duration   time.Duration
	blocked    func() string
}

// NewBuildTask returns a BuildTask with a fresh id and name, concurrent
// builds disabled, flyweight disabled, persistent enabled.
func NewBuildTask(name string) *BuildTask {
	return &BuildTask{
		ID:         uuid.NewString(),
		Name:       name,
		Persistent: true,
	}
}

// WithBlockReason installs a function consulted by CauseOfBlockage and
// IsBuildBlocked, so tests can flip a task's blocked state on demand.
func (t *BuildTask) WithBlockReason(fn func() string) *BuildTask {
	t.blocked = fn
	return t
}

func (t *BuildTask) FullDisplayName() string        { return t.Name }
func (t *BuildTask) AssignedLabel() string           { return t.Label }
func (t *BuildTask) ResourceList() queue.ResourceList { return t.Resources }
func (t *BuildTask) IsConcurrentBuild() bool          { return t.Concurrent }
func (t *BuildTask) EstimatedDuration() time.Duration { return t.Duration }
func (t *BuildTask) IsPersistent() bool               { return t.Persistent }
func (t *BuildTask) IsFlyweight() bool                { return t.Flyweight }
func (t *BuildTask) IsNonBlocking() bool              { return t.NonBlock }

func (t *BuildTask) CauseOfBlockage() string {
	if t.blocked == nil {
		return ""
	}
	return t.blocked()
}

func (t *BuildTask) IsBuildBlocked() bool {
	return t.CauseOfBlockage() != ""
}

func (t *BuildTask) SubTasks() []queue.SubTask {
	return []queue.SubTask{buildSubTask{t}}
}

// Equals compares by Name: two submissions for the same pipeline name
// are the same task for coalescing purposes, regardless of ID.
func (t *BuildTask) Equals(other queue.Task) bool {
	o, ok := other.(*BuildTask)
	if !ok {
		return false
	}
	return t.Name == o.Name
}

type buildSubTask struct {
	task *BuildTask
}

func (s buildSubTask) FullDisplayName() string         { return s.task.Name }
func (s buildSubTask) ResourceList() queue.ResourceList { return s.task.Resources }

// Registry resolves tasks by full display name, satisfying
// queue.TaskResolver for persistence reload and legacy migration. A
// real controller would back this with its job configuration store;
// this in-memory map is enough for the demo wiring and tests.
type Registry struct {
	tasks map[string]*BuildTask
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*BuildTask)}
}

// Put registers t under its full display name, overwriting any
// previous task registered under the same name.
func (r *Registry) Put(t *BuildTask) {
	r.tasks[t.FullDisplayName()] = t
}

// Resolve implements queue.TaskResolver.
func (r *Registry) Resolve(name string) (queue.Task, bool) {
	t, ok := r.tasks[name]
	if !ok {
		return nil, false
	}
	return t, true
}
