package agentrt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/infer-no-dev/devkit/internal/task"
)

// MockAgent is a configurable test double agent. It is part of the spec, not a test-only hack, because it is used to seed
// the runtime before real agents load.
type MockAgent struct {
	// ProcessFunc overrides behaviour entirely; when nil, Delay then a canned success
	// result is returned.
	ProcessFunc func(ctx context.Context, t task.Task) (task.Result, error)
	Delay time.Duration
	caps []string
	name string
	status atomic.Value
	cancelled sync.Map
}

// NewMockAgent builds a MockAgent with the given capability tags.
func NewMockAgent(name string, caps ...string) *MockAgent {
	m := &MockAgent{name: name, caps: caps}
	m.status.Store(Status{Kind: StatusIdle})
	return m
}

// Name implements Agent.
func (m *MockAgent) Name() string { return m.name }

// Capabilities implements Agent.
func (m *MockAgent) Capabilities() []string { return m.caps }

// CanHandle implements Agent.
func (m *MockAgent) CanHandle(t task.Task) bool {
	if len(m.caps) == 0 {
		return true
	}
	return hasCapability(m.caps, t.Kind.Name)
}

// Process implements Agent.
func (m *MockAgent) Process(ctx context.Context, t task.Task) (task.Result, error) {
	m.status.Store(Status{Kind: StatusBusy, TaskID: t.ID})
	defer m.status.Store(Status{Kind: StatusIdle})

	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, t)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return task.Result{TaskID: t.ID, AgentName: m.name, Success: false}, ctx.Err()
		}
	}
	return task.Result{
		TaskID: t.ID,
		AgentName: m.name,
		Success: true,
		Output: "mock output for " + t.Description,
	}, nil
}

// Cancel implements Agent; it just records the request for inspection in tests.
func (m *MockAgent) Cancel(taskID string) {
	m.cancelled.Store(taskID, true)
}

// WasCancelled reports whether Cancel was ever called for taskID.
func (m *MockAgent) WasCancelled(taskID string) bool {
	_, ok := m.cancelled.Load(taskID)
	return ok
}

// Status implements Agent.
func (m *MockAgent) Status() Status {
	return m.status.Load().(Status) //nolint:forcetypeassert // only this type is ever stored
}
