package agentrt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/logx"
	"github.com/infer-no-dev/devkit/internal/task"
)

// DefaultTaskTimeout bounds a single Process call when no per-runtime override is set.
const DefaultTaskTimeout = 300 * time.Second

// Stats is a point-in-time snapshot of runtime occupancy: total agent count, queued and
// running task counts, and completed/failed totals, enriched with per-agent detail.
type Stats struct {
	QueueDepth map[string]int
	Busy map[string]bool
	Metrics map[string]Metrics
	TotalAgents int
	QueuedTasks int
	RunningTasks int
	Completed int64
	Failed int64
}

// Metrics is the per-agent aggregate of tasks_completed, tasks_failed,
// total_processing_time, avg_completion_time, and success_rate. Updated exclusively from
// the owning agent's dispatch loop, never from a caller's goroutine.
type Metrics struct {
	TasksCompleted int64
	TasksFailed int64
	TotalProcessing time.Duration
	AvgCompletionTime time.Duration
	SuccessRate float64
}

// agentState is the runtime's private bookkeeping for one registered agent: its queue, a
// wakeup channel for the dispatch loop, and the set of cancel funcs for tasks currently in
// flight on it.
type agentState struct {
	agent Agent
	queue *agentQueue
	wake chan struct{}
	mu sync.Mutex
	cancels map[string]context.CancelFunc
	metrics Metrics
}

// cancelState records, for one submission not yet finished, which agent it was submitted
// to and whether Cancel has been called for it. The context.CancelFunc of a dispatched
// task lives in its agentState's cancels map; a task cancelled while still queued is
// discarded at pop time, when the dispatch loop checks this flag before running it.
type cancelState struct {
	agentName string
	cancelled bool
}

func (s *agentState) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Runtime is the Agent Runtime: per-agent priority queues drained by one dispatch
// goroutine each, bounded by a shared semaphore capping
// config.AgentsConfig.MaxConcurrentAgents concurrent Process calls across all agents.
type Runtime struct {
	logger *logx.Logger
	onComplete func(task.Result)
	sem chan struct{}
	stopCh chan struct{}
	taskTimeout time.Duration
	mu sync.RWMutex
	agents map[string]*agentState
	tasks map[string]*cancelState
	stopOnce sync.Once
	wg sync.WaitGroup
}

// New builds a Runtime bounding concurrent agent work at maxConcurrent.
func New(maxConcurrent int) *Runtime {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runtime{
		agents: make(map[string]*agentState),
		tasks: make(map[string]*cancelState),
		sem: make(chan struct{}, maxConcurrent),
		stopCh: make(chan struct{}),
		taskTimeout: DefaultTaskTimeout,
		logger: logx.New("agentrt"),
	}
}

// SetTaskTimeout overrides the per-task context deadline applied to every Process call.
func (r *Runtime) SetTaskTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskTimeout = d
}

// SetOnComplete installs the callback invoked once per finished task.Result, in the order
// results actually complete (not submission order) — used by callers to observe scenario
// S1's "callback order" outcomes.
func (r *Runtime) SetOnComplete(fn func(task.Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = fn
}

// Register adds agent to the runtime and starts its dispatch loop. Registering the same
// agent name twice returns a Duplicate error (invariant: one registration per name).
func (r *Runtime) Register(agent Agent) error {
	r.mu.Lock()
	if _, exists := r.agents[agent.Name()]; exists {
		r.mu.Unlock()
		return errkind.New(errkind.Duplicate, "agent already registered: "+agent.Name())
	}
	st := &agentState{
		agent: agent,
		queue: newAgentQueue(),
		wake: make(chan struct{}, 1),
		cancels: make(map[string]context.CancelFunc),
	}
	r.agents[agent.Name()] = st
	r.mu.Unlock()

	r.wg.Add(1)
	go r.dispatchLoop(st)
	return nil
}

// Submit enqueues t on the named agent's queue. Unknown agent names return NotFound.
func (r *Runtime) Submit(agentName string, t task.Task) error {
	r.mu.Lock()
	st, ok := r.agents[agentName]
	if !ok {
		r.mu.Unlock()
		return errkind.New(errkind.NotFound, "unknown agent: "+agentName)
	}
	r.tasks[t.ID] = &cancelState{agentName: agentName}
	r.mu.Unlock()

	st.mu.Lock()
	st.queue.push(t, time.Now())
	st.mu.Unlock()
	st.signal() // suspension point: wakes a loop parked on "queue empty"
	return nil
}

// Cancel is best-effort: if taskID is still queued it is discarded at its next
// pop with a Cancelled result; if it is already running, the advisory flag is delivered to
// the agent and its context is cancelled.
func (r *Runtime) Cancel(taskID string) error {
	r.mu.Lock()
	cs, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return errkind.New(errkind.NotFound, "unknown task: "+taskID)
	}
	cs.cancelled = true
	agentName := cs.agentName
	r.mu.Unlock()

	r.mu.RLock()
	st, ok := r.agents[agentName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	st.agent.Cancel(taskID)
	st.mu.Lock()
	if cancel, inFlight := st.cancels[taskID]; inFlight {
		cancel()
	}
	st.mu.Unlock()
	return nil
}

// Status returns the named agent's current lifecycle status.
func (r *Runtime) Status(agentName string) (Status, error) {
	r.mu.RLock()
	st, ok := r.agents[agentName]
	r.mu.RUnlock()
	if !ok {
		return Status{}, errkind.New(errkind.NotFound, "unknown agent: "+agentName)
	}
	return st.agent.Status(), nil
}

// Stats reports queue depth, busy state, and completion aggregates across every
// registered agent.
func (r *Runtime) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Stats{
		QueueDepth: make(map[string]int, len(r.agents)),
		Busy: make(map[string]bool, len(r.agents)),
		Metrics: make(map[string]Metrics, len(r.agents)),
		TotalAgents: len(r.agents),
	}
	for name, st := range r.agents {
		st.mu.Lock()
		depth := st.queue.len()
		m := st.metrics
		st.mu.Unlock()

		out.QueueDepth[name] = depth
		out.Metrics[name] = m
		out.QueuedTasks += depth
		out.Completed += m.TasksCompleted
		out.Failed += m.TasksFailed

		busy := st.agent.Status().Kind == StatusBusy
		out.Busy[name] = busy
		if busy {
			out.RunningTasks++
		}
	}
	return out
}

// CapableAgents returns the names of every registered agent advertising capability,
// sorted for deterministic tie-breaking.
func (r *Runtime) CapableAgents(capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, st := range r.agents {
		for _, c := range st.agent.Capabilities() {
			if c == capability {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// QueueDepth reports the named agent's current queue length.
func (r *Runtime) QueueDepth(agentName string) (int, error) {
	r.mu.RLock()
	st, ok := r.agents[agentName]
	r.mu.RUnlock()
	if !ok {
		return 0, errkind.New(errkind.NotFound, "unknown agent: "+agentName)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.queue.len(), nil
}

// Stop halts every dispatch loop after their current in-flight task (if any) completes.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// dispatchLoop drains st's queue one task at a time, serialising Process calls for this
// agent while bounding total cross-agent concurrency via r.sem. It parks at four points
// named by : queue empty, awaiting the semaphore, awaiting the agent's response,
// and (inside runOne) awaiting the per-task timeout.
func (r *Runtime) dispatchLoop(st *agentState) {
	defer r.wg.Done()
	for {
		st.mu.Lock()
		t, ok := st.queue.pop()
		st.mu.Unlock()

		if !ok {
			select { // suspension point: queue empty
			case <-st.wake:
				continue
			case <-r.stopCh:
				return
			}
		}

		if r.consumeCancelled(t.ID) {
			r.deliverCancelled(st, t)
			continue
		}

		select { // suspension point: awaiting the shared concurrency semaphore
		case r.sem <- struct{}{}:
		case <-r.stopCh:
			return
		}

		r.runOne(st, t)
		<-r.sem
	}
}

// consumeCancelled reports whether taskID was cancelled while queued, clearing its
// bookkeeping entry either way, checked again the instant a popped task would otherwise
// dispatch.
func (r *Runtime) consumeCancelled(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.tasks[taskID]
	if !ok {
		return false
	}
	cancelled := cs.cancelled
	delete(r.tasks, taskID)
	return cancelled
}

func (r *Runtime) deliverCancelled(st *agentState, t task.Task) {
	r.mu.RLock()
	onComplete := r.onComplete
	r.mu.RUnlock()
	if onComplete == nil {
		return
	}
	onComplete(task.Result{
		TaskID: t.ID,
		AgentName: st.agent.Name(),
		Success: false,
		Error: errkind.New(errkind.Cancelled, "task cancelled while queued"),
	})
}

func (r *Runtime) runOne(st *agentState, t task.Task) {
	r.mu.RLock()
	timeout := r.taskTimeout
	onComplete := r.onComplete
	r.mu.RUnlock()

	if t.Deadline != nil {
		if remaining := time.Until(*t.Deadline); remaining < timeout {
			timeout = remaining
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout) // suspension point: awaiting timeout
	st.mu.Lock()
	st.cancels[t.ID] = cancel
	st.mu.Unlock()

	started := time.Now()
	result, err := st.agent.Process(ctx, t) // suspension point: awaiting agent response
	elapsed := time.Since(started)
	cancel()

	st.mu.Lock()
	delete(st.cancels, t.ID)
	st.mu.Unlock()

	r.mu.Lock()
	delete(r.tasks, t.ID)
	r.mu.Unlock()

	if err != nil && result.Error == nil {
		kind, ok := errkind.KindOf(err)
		if !ok {
			kind = errkind.Timeout
		}
		result.Error = errkind.New(kind, err.Error())
		result.Success = false
	}
	result.TaskID = t.ID
	if result.AgentName == "" {
		result.AgentName = st.agent.Name()
	}

	// Metrics are only ever mutated here, in the dispatch loop that owns st; st.mu is
	// still held because Stats reads them from other goroutines.
	st.mu.Lock()
	if result.Success {
		st.metrics.TasksCompleted++
	} else {
		st.metrics.TasksFailed++
	}
	st.metrics.TotalProcessing += elapsed
	total := st.metrics.TasksCompleted + st.metrics.TasksFailed
	if total > 0 {
		st.metrics.AvgCompletionTime = st.metrics.TotalProcessing / time.Duration(total)
		st.metrics.SuccessRate = float64(st.metrics.TasksCompleted) / float64(total)
	}
	st.mu.Unlock()

	if onComplete != nil {
		onComplete(result)
	}
}
