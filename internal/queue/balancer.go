package queue

import (
	"errors"
	"sync"
)

// ErrNoAvailableOffers names the condition of a worksheet with no willing
// candidates, mirroring the teacher's ErrNoAvailableNodes.
// RoundRobinBalancer.Map does not return it; it reports that condition
// by returning a nil Mapping.
var ErrNoAvailableOffers = errors.New("queue: no available offers")

// RoundRobinBalancer distributes work evenly across the candidate offers
// in a worksheet, generalizing the teacher's scheduler.RoundRobin (which
// picked one node per task) to the queue's subtask-aware Mapping
// contract: it assigns one candidate per subtask, in round-robin order,
// and declines (returns nil) if there are more subtasks than willing
// candidates this pass.
type RoundRobinBalancer struct {
	mu       sync.Mutex
	lastUsed int
}

// NewRoundRobinBalancer returns a balancer with no placement history.
func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{lastUsed: -1}
}

// Map implements LoadBalancer.
func (rr *RoundRobinBalancer) Map(task Task, ws *MappingWorksheet) Mapping {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if len(ws.Candidates) == 0 {
		return nil
	}

	subtasks := task.SubTasks()
	if len(subtasks) == 0 {
		subtasks = []SubTask{soloSubTask{task}}
	}
	if len(subtasks) > len(ws.Candidates) {
		return nil
	}

	assignments := make([]roundRobinAssignment, 0, len(subtasks))
	for i, st := range subtasks {
		rr.lastUsed = (rr.lastUsed + 1) % len(ws.Candidates)
		assignments = append(assignments, roundRobinAssignment{
			offer:   ws.Candidates[rr.lastUsed],
			subTask: st,
			isMain:  i == 0,
		})
	}

	return roundRobinMapping{assignments: assignments}
}

type roundRobinAssignment struct {
	offer   *JobOffer
	subTask SubTask
	isMain  bool
}

type roundRobinMapping struct {
	assignments []roundRobinAssignment
}

func (m roundRobinMapping) Execute(ctx *WorkUnitContext) {
	for _, a := range m.assignments {
		wu := ctx.CreateWorkUnit(a.subTask, a.isMain)
		a.offer.Set(wu)
	}
}

// soloSubTask adapts a Task with no declared subtasks into a single
// SubTask standing in for itself.
type soloSubTask struct {
	task Task
}

func (s soloSubTask) FullDisplayName() string   { return s.task.FullDisplayName() }
func (s soloSubTask) ResourceList() ResourceList { return s.task.ResourceList() }
