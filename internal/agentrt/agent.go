// Package agentrt implements the Agent Runtime: per-agent priority queues, a
// bounded-concurrency dispatch loop, and the agent lifecycle state machine, grounded on
// pkg/agent/state_machine.go and pkg/dispatch dispatch-loop design.
package agentrt

import (
	"context"

	"github.com/infer-no-dev/devkit/internal/task"
)

// StatusKind is the tag of an AgentStatus.
type StatusKind int8

// Recognised status kinds.
const (
	StatusIdle StatusKind = iota
	StatusBusy
	StatusError
	StatusStopped
)

// String implements fmt.Stringer.
func (s StatusKind) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is an agent's observable lifecycle state.
type Status struct {
	Kind StatusKind
	TaskID string // set when Kind == StatusBusy
	Message string // set when Kind == StatusError
}

// Idle reports whether the status is the Idle state.
func (s Status) Idle() bool { return s.Kind == StatusIdle }

// Agent is the polymorphic task processor. Implementations must process at
// most one task at a time; the runtime enforces this by channel-serialising dispatch per
// agent rather than relying on implementations to self-serialize.
type Agent interface {
	Name() string
	Capabilities() []string
	CanHandle(t task.Task) bool
	// Process runs t to completion or until ctx is cancelled. Implementations that take
	// more than an instant should poll ctx.Done() at natural step boundaries so
	// cooperative cancellation actually takes effect.
	Process(ctx context.Context, t task.Task) (task.Result, error)
	// Cancel is an advisory signal for a task believed to be in flight on this agent; it
	// is best-effort and agents that ignore it simply run until their context deadline.
	Cancel(taskID string)
	Status() Status
}

func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
