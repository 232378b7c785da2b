// Package task defines the Task and TaskResult data model.
package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/infer-no-dev/devkit/internal/errkind"
)

// Priority orders tasks within a per-agent queue: Critical > High > Normal > Low.
type Priority int8

const (
	// Low is the lowest scheduling priority.
	Low Priority = iota
	// Normal is the default scheduling priority.
	Normal
	// High is scheduled ahead of Normal and Low.
	High
	// Critical is scheduled ahead of every other priority.
	Critical
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind tags the nature of work a task represents.
type Kind struct {
	// Custom holds the tag name when Name == "custom"; empty otherwise.
	Custom string
	Name string
}

// Known task kinds.
var (
	KindCodeGeneration = Kind{Name: "code_generation"} //nolint:gochecknoglobals // tag constants
	KindAnalysis = Kind{Name: "analysis"}
	KindDebugging = Kind{Name: "debugging"}
)

// KindCustom builds a Kind tagged Custom<name>.
func KindCustom(name string) Kind {
	return Kind{Name: "custom", Custom: name}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k.Name == "custom" {
		return "custom<" + k.Custom + ">"
	}
	return k.Name
}

// Task is immutable once submitted to the runtime.
type Task struct {
	Deadline *time.Time
	Context map[string]any
	Metadata map[string]string
	ID string
	Description string
	Kind Kind
	Priority Priority
}

// New builds a Task with a freshly generated id.
func New(description string, kind Kind, priority Priority) Task {
	return Task{
		ID: uuid.NewString(),
		Description: description,
		Kind: kind,
		Priority: priority,
		Context: map[string]any{},
		Metadata: map[string]string{},
	}
}

// Artifact is a versioned, typed output produced within a session.
type Artifact struct {
	ID string
	Kind string
	Content string
	Metadata map[string]string
	Status string
	Version int
}

// Metrics holds per-result scheduling/processing statistics.
type Metrics struct {
	Duration time.Duration
	TokensUsed int
	Retries int
}

// Result is the outcome of processing a Task.
type Result struct {
	Error *errkind.Error
	TaskID string
	AgentName string
	Output string
	Artifacts []Artifact
	Metrics Metrics
	Success bool
}
