// Package session implements the Session Store: durable session objects with
// branch/snapshot semantics, LRU memory residency, auto-save, and checkpoint rings,
// over a pluggable Backend trait and a content-addressed snapshot ring.
package session

import (
	"encoding/json"
	"time"

	"github.com/infer-no-dev/devkit/internal/task"
)

// Status is a Session's lifecycle state.
type Status string

// Recognised session statuses.
const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusLocked Status = "locked"
	StatusArchived Status = "archived"
	StatusDeleted Status = "deleted"
)

// BranchStatus is a Branch's lifecycle state.
type BranchStatus string

// Recognised branch statuses.
const (
	BranchActive BranchStatus = "active"
	BranchMerged BranchStatus = "merged"
	BranchAbandoned BranchStatus = "abandoned"
	BranchLocked BranchStatus = "locked"
)

// Branch holds no state of its own; divergence is represented by snapshots chained from
// BranchPoint.
type Branch struct {
	ID string
	Name string
	Parent string
	BranchPoint string
	MergeInfo string
	Status BranchStatus
}

// Permissions is the access grant carried by a Share.
type Permissions struct {
	Read bool
	Write bool
	Admin bool
}

// Share exposes collaborative access to a session.
type Share struct {
	ExpiresAt *time.Time
	ID string
	Permissions Permissions
}

// ThreadMessage is one turn of a conversation thread.
type ThreadMessage struct {
	At time.Time
	Role string
	Content string
}

// Thread is one conversation attached to a session.
type Thread struct {
	ID string
	Messages []ThreadMessage
}

// AgentSessionInfo tracks one agent's association with a session.
type AgentSessionInfo struct {
	LastActive time.Time
	AgentName string
	Status string
}

// Session is the durable unit managed by the Store. Variables is a raw JSON
// object, mutated in place via gjson/sjson so a single variable can be patched without
// round-tripping the whole document.
type Session struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	AccessedAt time.Time
	Agents map[string]AgentSessionInfo
	Branches map[string]Branch
	Config map[string]string
	ID string
	Name string
	Owner string
	ActiveBranch string
	Status Status
	Conversations []Thread
	Artifacts []task.Artifact
	Collaboration []Share
	Variables json.RawMessage
}

// Clone returns a deep-enough copy safe to mutate or persist without aliasing the
// original's maps/slices.
func (s Session) Clone() Session {
	out := s
	out.Agents = cloneMap(s.Agents)
	out.Branches = cloneMap(s.Branches)
	out.Config = cloneMap(s.Config)
	out.Conversations = append([]Thread(nil), s.Conversations...)
	out.Artifacts = append([]task.Artifact(nil), s.Artifacts...)
	out.Collaboration = append([]Share(nil), s.Collaboration...)
	out.Variables = append(json.RawMessage(nil), s.Variables...)
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
