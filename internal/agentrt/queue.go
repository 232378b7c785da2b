package agentrt

import (
	"container/heap"
	"time"

	"github.com/infer-no-dev/devkit/internal/task"
)

// queueItem is one pending submission: a task plus its arrival order, which breaks ties
// between equal priorities.
type queueItem struct {
	task task.Task
	submitAt time.Time
	seq uint64
	index int
}

// priorityQueue is a per-agent container/heap.Interface ordering by priority desc, then
// submission time asc, then a monotonic sequence number as a final tiebreaker so two tasks
// submitted in the same time-resolution tick still resolve deterministically.
type priorityQueue []*queueItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority > q[j].task.Priority
	}
	if !q[i].submitAt.Equal(q[j].submitAt) {
		return q[i].submitAt.Before(q[j].submitAt)
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priorityQueue) Push(x any) {
	item := x.(*queueItem) //nolint:forcetypeassert // only *queueItem is ever pushed
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// agentQueue wraps priorityQueue behind heap.Interface calls and a sequence counter.
type agentQueue struct {
	pq priorityQueue
	seq uint64
}

func newAgentQueue() *agentQueue {
	return &agentQueue{pq: priorityQueue{}}
}

func (a *agentQueue) push(t task.Task, submitAt time.Time) {
	a.seq++
	heap.Push(&a.pq, &queueItem{task: t, submitAt: submitAt, seq: a.seq})
}

// pop removes and returns the highest-priority, earliest-submitted task. ok is false when
// the queue is empty.
func (a *agentQueue) pop() (task.Task, bool) {
	if a.pq.Len() == 0 {
		return task.Task{}, false
	}
	item := heap.Pop(&a.pq).(*queueItem) //nolint:forcetypeassert // heap only ever holds *queueItem
	return item.task, true
}

func (a *agentQueue) len() int { return a.pq.Len() }
