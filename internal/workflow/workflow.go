// Package workflow implements the Workflow Coordinator: DAG-validated
// multi-task submissions dispatched through the Agent Runtime by capability match, with
// dependency-driven readiness expansion and failure propagation across a dependency DAG
// rather than a flat task queue.
package workflow

import (
	"sync"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/logx"
	"github.com/infer-no-dev/devkit/internal/task"
)

// Status is a workflow's lifecycle state.
type Status int8

// Recognised workflow statuses.
const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WorkflowTask pairs a task with the ids of the tasks it depends on.
type WorkflowTask struct {
	Task task.Task
	Deps []string
}

// Workflow is a DAG of dependent tasks submitted as a unit.
type Workflow struct {
	ID string
	Description string
	Tasks []WorkflowTask
}

// Dispatcher is the subset of agentrt.Runtime the coordinator needs: capability-based
// agent discovery, queue depth for load-balanced selection, and task submission. A
// Coordinator takes over SetOnComplete on the Dispatcher it is given — do not also use
// that runtime for unrelated standalone task submissions expecting their own callback.
type Dispatcher interface {
	CapableAgents(capability string) []string
	QueueDepth(agentName string) (int, error)
	Submit(agentName string, t task.Task) error
	SetOnComplete(fn func(task.Result))
}

// run is the coordinator's private bookkeeping for one in-flight Workflow.
type run struct {
	wf Workflow
	mu sync.Mutex
	status Status
	remainingDeps map[string]int
	dependents map[string][]string
	byID map[string]task.Task
	agentByTask map[string]string
	pending int
	firstFailure string
	done chan struct{}
}

// Coordinator runs Workflows over a Dispatcher.
type Coordinator struct {
	dispatcher Dispatcher
	logger *logx.Logger
	mu sync.Mutex
	runs map[string]*run
	taskOwner map[string]string // task id -> workflow id
}

// New builds a Coordinator and installs itself as d's completion callback.
func New(d Dispatcher) *Coordinator {
	c := &Coordinator{
		dispatcher: d,
		logger: logx.New("workflow"),
		runs: make(map[string]*run),
		taskOwner: make(map[string]string),
	}
	d.SetOnComplete(c.onTaskComplete)
	return c
}

// Submit validates wf (unique task ids, acyclic, no missing dependencies — an
// InvalidWorkflow condition otherwise) and dispatches its dependency-free tasks.
func (c *Coordinator) Submit(wf Workflow) error {
	if err := validate(wf); err != nil {
		return err
	}

	r := &run{
		wf: wf,
		status: StatusRunning,
		remainingDeps: make(map[string]int, len(wf.Tasks)),
		dependents: make(map[string][]string, len(wf.Tasks)),
		byID: make(map[string]task.Task, len(wf.Tasks)),
		agentByTask: make(map[string]string, len(wf.Tasks)),
		done: make(chan struct{}),
	}
	for _, wt := range wf.Tasks {
		r.byID[wt.Task.ID] = wt.Task
		r.remainingDeps[wt.Task.ID] = len(wt.Deps)
		for _, dep := range wt.Deps {
			r.dependents[dep] = append(r.dependents[dep], wt.Task.ID)
		}
	}

	c.mu.Lock()
	c.runs[wf.ID] = r
	for _, wt := range wf.Tasks {
		c.taskOwner[wt.Task.ID] = wf.ID
	}
	c.mu.Unlock()

	var ready []string
	for id, n := range r.remainingDeps {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	for _, id := range ready {
		c.dispatchTask(r, id)
	}
	return nil
}

// Status reports wf's current lifecycle state.
func (c *Coordinator) Status(workflowID string) (Status, error) {
	c.mu.Lock()
	r, ok := c.runs[workflowID]
	c.mu.Unlock()
	if !ok {
		return 0, errkind.New(errkind.NotFound, "unknown workflow: "+workflowID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

// Done returns a channel closed once wf reaches a terminal status.
func (c *Coordinator) Done(workflowID string) (<-chan struct{}, error) {
	c.mu.Lock()
	r, ok := c.runs[workflowID]
	c.mu.Unlock()
	if !ok {
		return nil, errkind.New(errkind.NotFound, "unknown workflow: "+workflowID)
	}
	return r.done, nil
}

// FirstFailure returns the id of the first task whose failure moved wf to Failed, or ""
// if wf has not failed.
func (c *Coordinator) FirstFailure(workflowID string) (string, error) {
	c.mu.Lock()
	r, ok := c.runs[workflowID]
	c.mu.Unlock()
	if !ok {
		return "", errkind.New(errkind.NotFound, "unknown workflow: "+workflowID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstFailure, nil
}

// dispatchTask selects an eligible agent by capability match and submits taskID's task to it.
func (c *Coordinator) dispatchTask(r *run, taskID string) {
	t := r.byID[taskID]
	agent, err := c.chooseAgent(t.Kind.Name)
	if err != nil {
		c.failRun(r, taskID)
		return
	}

	r.mu.Lock()
	r.agentByTask[taskID] = agent
	r.pending++
	r.mu.Unlock()

	if err := c.dispatcher.Submit(agent, t); err != nil {
		c.logger.Warn("workflow %s: failed to submit task %s to %s: %v", r.wf.ID, taskID, agent, err)
		c.failRun(r, taskID)
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
	}
}

func (c *Coordinator) chooseAgent(capability string) (string, error) {
	names := c.dispatcher.CapableAgents(capability)
	if len(names) == 0 {
		return "", errkind.New(errkind.NotFound, "no capable agent for "+capability)
	}
	best := names[0]
	bestDepth, err := c.dispatcher.QueueDepth(best)
	if err != nil {
		bestDepth = 0
	}
	for _, name := range names[1:] {
		depth, err := c.dispatcher.QueueDepth(name)
		if err != nil {
			continue
		}
		if depth < bestDepth {
			best, bestDepth = name, depth
		}
	}
	return best, nil
}

// onTaskComplete is installed as the dispatcher's single completion callback; it routes
// each result back to the owning workflow run.
func (c *Coordinator) onTaskComplete(result task.Result) {
	c.mu.Lock()
	wfID, ok := c.taskOwner[result.TaskID]
	var r *run
	if ok {
		r = c.runs[wfID]
	}
	c.mu.Unlock()
	if r == nil {
		return // task not owned by any tracked workflow
	}

	if !result.Success {
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
		c.failRun(r, result.TaskID)
		c.finishIfDrained(r)
		return
	}

	var newlyReady []string
	r.mu.Lock()
	for _, dep := range r.dependents[result.TaskID] {
		r.remainingDeps[dep]--
		if r.remainingDeps[dep] == 0 {
			newlyReady = append(newlyReady, dep)
		}
	}
	r.pending--
	r.mu.Unlock()

	for _, id := range newlyReady {
		r.mu.Lock()
		stillRunning := r.status == StatusRunning
		r.mu.Unlock()
		if stillRunning {
			c.dispatchTask(r, id)
		}
	}
	c.finishIfDrained(r)
}

func (c *Coordinator) failRun(r *run, taskID string) {
	r.mu.Lock()
	if r.status == StatusRunning {
		r.status = StatusFailed
		r.firstFailure = taskID
	}
	r.mu.Unlock()
}

// finishIfDrained closes r.done once every dispatched task has completed and r's status
// has reached a terminal state, completing the workflow as Completed if every task
// succeeded.
func (c *Coordinator) finishIfDrained(r *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending > 0 {
		return
	}
	if r.status == StatusRunning {
		r.status = StatusCompleted
	}
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// validate enforces wf's structural invariants: unique task ids, no dependency on an
// unknown task id, and an acyclic dependency graph.
func validate(wf Workflow) error {
	seen := make(map[string]bool, len(wf.Tasks))
	for _, wt := range wf.Tasks {
		if seen[wt.Task.ID] {
			return errkind.New(errkind.Validation, "invalid workflow: duplicate task id "+wt.Task.ID)
		}
		seen[wt.Task.ID] = true
	}
	for _, wt := range wf.Tasks {
		for _, dep := range wt.Deps {
			if !seen[dep] {
				return errkind.New(errkind.Validation, "invalid workflow: missing dependency "+dep)
			}
		}
	}
	return checkAcyclic(wf)
}

// checkAcyclic runs a DFS with a three-color marking to reject any workflow whose
// dependency graph contains a cycle.
func checkAcyclic(wf Workflow) error {
	const (
		white = iota
		gray
		black
	)
	deps := make(map[string][]string, len(wf.Tasks))
	for _, wt := range wf.Tasks {
		deps[wt.Task.ID] = wt.Deps
	}
	color := make(map[string]int, len(wf.Tasks))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return errkind.New(errkind.Validation, "invalid workflow: dependency cycle at "+id)
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, wt := range wf.Tasks {
		if err := visit(wt.Task.ID); err != nil {
			return err
		}
	}
	return nil
}
