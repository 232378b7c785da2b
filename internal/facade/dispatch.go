package facade

import (
	"sync"

	"github.com/infer-no-dev/devkit/internal/agentrt"
	"github.com/infer-no-dev/devkit/internal/task"
)

// fanoutDispatcher wraps an agentrt.Runtime so more than one caller can observe task
// completions. The Runtime itself only ever holds a single onComplete callback; the
// workflow.Coordinator installs itself as that one callback, which would
// otherwise shut the Facade out of completions for its own single-task submissions. This
// mirrors the bus package's fan-out-to-many-subscribers shape, applied to the runtime's
// one completion slot instead of a per-agent inbox.
type fanoutDispatcher struct {
	rt *agentrt.Runtime

	mu sync.Mutex
	handlers []func(task.Result)
}

func newFanoutDispatcher(rt *agentrt.Runtime) *fanoutDispatcher {
	d := &fanoutDispatcher{rt: rt}
	rt.SetOnComplete(d.dispatch)
	return d
}

// CapableAgents implements workflow.Dispatcher.
func (d *fanoutDispatcher) CapableAgents(capability string) []string { return d.rt.CapableAgents(capability) }

// QueueDepth implements workflow.Dispatcher.
func (d *fanoutDispatcher) QueueDepth(agentName string) (int, error) { return d.rt.QueueDepth(agentName) }

// Submit implements workflow.Dispatcher.
func (d *fanoutDispatcher) Submit(agentName string, t task.Task) error { return d.rt.Submit(agentName, t) }

// SetOnComplete implements workflow.Dispatcher by registering another fan-out handler
// rather than replacing the Runtime's single callback slot.
func (d *fanoutDispatcher) SetOnComplete(fn func(task.Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, fn)
}

func (d *fanoutDispatcher) dispatch(result task.Result) {
	d.mu.Lock()
	handlers := append([]func(task.Result){}, d.handlers...)
	d.mu.Unlock()
	for _, h := range handlers {
		h(result)
	}
}
