package session

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/logx"
	"github.com/infer-no-dev/devkit/internal/task"
)

// Default tuning knobs, overridable via StoreOption.
const (
	DefaultMaxActiveSessions = 100
	DefaultAutoSaveInterval = 5 * time.Minute
	DefaultCheckpointInterval = 15 * time.Minute
	DefaultMaxSnapshotsPerRun = 50
)

// Snapshot is one entry in a session's checkpoint ring: a content-addressed copy of the
// session document at some point in time, referenced by branch points.
type Snapshot struct {
	TakenAt time.Time
	ID string // sha256 of the serialized session with AccessedAt cleared, hex-encoded
	Session Session
}

// Store is the Session Store: an LRU-resident cache over a Backend, with background
// auto-save and checkpointing, a pluggable Backend trait, and a content-addressed
// snapshot ring.
type Store struct {
	backend Backend
	logger *logx.Logger
	stopCh chan struct{}
	stopOnce sync.Once
	wg sync.WaitGroup

	mu sync.Mutex
	resident map[string]*list.Element // id -> LRU node
	lru *list.List // front = most recently used
	snapshots map[string][]Snapshot // session id -> checkpoint ring, oldest first
	dirty map[string]bool // session id -> needs auto-save

	maxActive int
	autoSaveInterval time.Duration
	checkpointInterval time.Duration
	maxSnapshotsPerRun int
}

type lruEntry struct {
	id string
	s Session
}

// StoreOption configures a Store at construction time.
type StoreOption func(*Store)

// WithMaxActiveSessions overrides DefaultMaxActiveSessions.
func WithMaxActiveSessions(n int) StoreOption {
	return func(s *Store) { s.maxActive = n }
}

// WithAutoSaveInterval overrides DefaultAutoSaveInterval.
func WithAutoSaveInterval(d time.Duration) StoreOption {
	return func(s *Store) { s.autoSaveInterval = d }
}

// WithCheckpointInterval overrides DefaultCheckpointInterval.
func WithCheckpointInterval(d time.Duration) StoreOption {
	return func(s *Store) { s.checkpointInterval = d }
}

// WithMaxSnapshotsPerSession overrides DefaultMaxSnapshotsPerRun.
func WithMaxSnapshotsPerSession(n int) StoreOption {
	return func(s *Store) { s.maxSnapshotsPerRun = n }
}

// NewStore builds a Store over backend and starts its background auto-save and
// checkpoint loops. Call Close to stop them.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		logger: logx.New("session"),
		stopCh: make(chan struct{}),
		resident: make(map[string]*list.Element),
		lru: list.New(),
		snapshots: make(map[string][]Snapshot),
		dirty: make(map[string]bool),
		maxActive: DefaultMaxActiveSessions,
		autoSaveInterval: DefaultAutoSaveInterval,
		checkpointInterval: DefaultCheckpointInterval,
		maxSnapshotsPerRun: DefaultMaxSnapshotsPerRun,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(2)
	go s.autoSaveLoop()
	go s.checkpointLoop()
	return s
}

// Close stops the background loops. It does not flush dirty sessions; call Save
// explicitly first if that is required.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Create builds a new Active session owned by owner and admits it to residency.
func (s *Store) Create(name, owner string) Session {
	now := time.Now()
	sess := Session{
		ID: uuid.NewString(),
		Name: name,
		Owner: owner,
		Status: StatusActive,
		ActiveBranch: "main",
		Branches: map[string]Branch{
			"main": {ID: "main", Name: "main", Status: BranchActive},
		},
		Agents: map[string]AgentSessionInfo{},
		Config: map[string]string{},
		Variables: json.RawMessage("{}"),
		CreatedAt: now,
		UpdatedAt: now,
		AccessedAt: now,
	}

	s.mu.Lock()
	victim, hadVictim := s.admitLocked(sess)
	s.mu.Unlock()

	if hadVictim {
		go func() {
			if err := s.flush(context.Background(), victim); err != nil {
				s.logger.Warn("failed to flush evicted session %s: %v", victim.ID, err)
			}
		}()
	}
	return sess
}

// Load returns the session by id, touching its AccessedAt and ensuring LRU residency:
// loading an evicted session brings it back into memory, possibly evicting another.
func (s *Store) Load(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	if el, ok := s.resident[id]; ok {
		s.lru.MoveToFront(el)
		entry := el.Value.(*lruEntry)
		entry.s.AccessedAt = time.Now()
		sess := entry.s.Clone()
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.backend.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	sess.AccessedAt = time.Now()

	s.mu.Lock()
	victim, hadVictim := s.admitLocked(sess)
	s.mu.Unlock()

	if hadVictim {
		if err := s.flush(ctx, victim); err != nil {
			s.logger.Warn("failed to flush evicted session %s: %v", victim.ID, err)
		}
	}
	return sess, nil
}

// Save persists sess immediately, bumping UpdatedAt, and refreshes residency if present.
// Calling Save(Load(id)) twice in a row is idempotent: the second call writes the same
// document back, since Save never mutates fields beyond UpdatedAt.
func (s *Store) Save(ctx context.Context, sess Session) error {
	sess.UpdatedAt = time.Now()
	if err := s.backend.Save(ctx, sess); err != nil {
		return err
	}
	s.mu.Lock()
	if el, ok := s.resident[sess.ID]; ok {
		el.Value.(*lruEntry).s = sess.Clone()
		s.lru.MoveToFront(el)
		delete(s.dirty, sess.ID)
	}
	s.mu.Unlock()
	return nil
}

// Delete removes a session from residency, its snapshot ring, collaboration shares, and
// the backend.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if el, ok := s.resident[id]; ok {
		s.lru.Remove(el)
		delete(s.resident, id)
	}
	delete(s.snapshots, id)
	delete(s.dirty, id)
	s.mu.Unlock()
	if snapBackend, ok := s.backend.(SnapshotBackend); ok {
		if err := snapBackend.TrimSnapshots(ctx, id, 0); err != nil {
			s.logger.Warn("failed to delete snapshot ring for %s: %v", id, err)
		}
	}
	return s.backend.Delete(ctx, id)
}

// List delegates to the Backend.
func (s *Store) List(ctx context.Context, owner string) ([]Session, error) {
	return s.backend.List(ctx, owner)
}

// Search delegates to the Backend.
func (s *Store) Search(ctx context.Context, owner, query string, filters map[string]string) ([]Session, error) {
	return s.backend.Search(ctx, owner, query, filters)
}

// admitLocked inserts sess into residency. Caller must hold s.mu. If admitting it pushes
// residency over maxActive, the least-recently-used session is evicted from the map and
// list and returned as (victim, true) for the caller to flush outside the lock.
func (s *Store) admitLocked(sess Session) (Session, bool) {
	if el, ok := s.resident[sess.ID]; ok {
		el.Value.(*lruEntry).s = sess.Clone()
		s.lru.MoveToFront(el)
		return Session{}, false
	}
	el := s.lru.PushFront(&lruEntry{id: sess.ID, s: sess.Clone()})
	s.resident[sess.ID] = el
	s.dirty[sess.ID] = true

	if s.lru.Len() <= s.maxActive {
		return Session{}, false
	}
	back := s.lru.Back()
	victim := back.Value.(*lruEntry).s
	s.lru.Remove(back)
	delete(s.resident, victim.ID)
	delete(s.dirty, victim.ID)
	return victim, true
}

// flush saves a session that has just left residency (eviction). It deliberately takes
// no lock across the backend call — the caller already removed it from the resident map under s.mu
// before invoking flush, so a concurrent Load correctly falls through to the backend.
func (s *Store) flush(ctx context.Context, sess Session) error {
	return s.backend.Save(ctx, sess)
}

// mutate loads the resident copy of id, applies fn, writes the result back into
// residency and marks it dirty for the next auto-save tick. It does not hit the backend;
// callers that need durability immediately should follow up with Save.
func (s *Store) mutate(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := fn(&sess); err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = time.Now()

	s.mu.Lock()
	if el, ok := s.resident[id]; ok {
		el.Value.(*lruEntry).s = sess.Clone()
		s.dirty[id] = true
	}
	s.mu.Unlock()
	return sess, nil
}

// CreateBranch adds a new Branch diverging from the session's current ActiveBranch at
// the given snapshot id.
func (s *Store) CreateBranch(ctx context.Context, sessionID, branchName, branchPoint string) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		if _, exists := sess.Branches[branchName]; exists {
			return errkind.New(errkind.Duplicate, "branch already exists: "+branchName)
		}
		sess.Branches[branchName] = Branch{
			ID: branchName,
			Name: branchName,
			Parent: sess.ActiveBranch,
			BranchPoint: branchPoint,
			Status: BranchActive,
		}
		return nil
	})
}

// SwitchBranch changes the session's ActiveBranch, rejecting unknown or locked targets.
func (s *Store) SwitchBranch(ctx context.Context, sessionID, branchName string) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		b, ok := sess.Branches[branchName]
		if !ok {
			return errkind.New(errkind.NotFound, "no such branch: "+branchName)
		}
		if b.Status == BranchLocked {
			return errkind.New(errkind.Conflict, "branch is locked: "+branchName)
		}
		sess.ActiveBranch = branchName
		return nil
	})
}

// AddAgent records an agent's association with a session.
func (s *Store) AddAgent(ctx context.Context, sessionID, agentName string) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		sess.Agents[agentName] = AgentSessionInfo{AgentName: agentName, Status: "idle", LastActive: time.Now()}
		return nil
	})
}

// UpdateAgentStatus updates the recorded status of an agent already tracked by the
// session, returning NotFound if the agent was never added.
func (s *Store) UpdateAgentStatus(ctx context.Context, sessionID, agentName, status string) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		info, ok := sess.Agents[agentName]
		if !ok {
			return errkind.New(errkind.NotFound, "agent not tracked by session: "+agentName)
		}
		info.Status = status
		info.LastActive = time.Now()
		sess.Agents[agentName] = info
		return nil
	})
}

// AddArtifact appends an artifact to the session.
func (s *Store) AddArtifact(ctx context.Context, sessionID string, artifact task.Artifact) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		sess.Artifacts = append(sess.Artifacts, artifact)
		return nil
	})
}

// Share grants collaborator access to a session, returning the new Share's id.
func (s *Store) Share(ctx context.Context, sessionID string, perms Permissions, expiresAt *time.Time) (string, error) {
	shareID := uuid.NewString()
	_, err := s.mutate(ctx, sessionID, func(sess *Session) error {
		sess.Collaboration = append(sess.Collaboration, Share{ID: shareID, Permissions: perms, ExpiresAt: expiresAt})
		return nil
	})
	if err != nil {
		return "", err
	}
	return shareID, nil
}

// Unshare revokes a previously granted Share by id.
func (s *Store) Unshare(ctx context.Context, sessionID, shareID string) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		out := sess.Collaboration[:0]
		for _, sh := range sess.Collaboration {
			if sh.ID != shareID {
				out = append(out, sh)
			}
		}
		sess.Collaboration = out
		return nil
	})
}

// SetConfig patches a single key of the session's Config map, used for small out-of-band
// settings such as the project root a Changeset Engine should be rooted at.
func (s *Store) SetConfig(ctx context.Context, sessionID, key, value string) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		if sess.Config == nil {
			sess.Config = map[string]string{}
		}
		sess.Config[key] = value
		return nil
	})
}

// SetVariable patches a single field of the session's Variables document in place via
// sjson, avoiding a full unmarshal/marshal round trip of unrelated keys.
func (s *Store) SetVariable(ctx context.Context, sessionID, path string, value any) (Session, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		updated, err := sjson.SetBytes([]byte(sess.Variables), path, value)
		if err != nil {
			return errkind.Wrap(errkind.Validation, err, "failed to set variable "+path)
		}
		sess.Variables = updated
		return nil
	})
}

// GetVariable reads a single field out of the session's Variables document via gjson.
func (s *Store) GetVariable(ctx context.Context, sessionID, path string) (gjson.Result, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(sess.Variables, path), nil
}

// Snapshot creates a content-addressed checkpoint of the session's current resident
// state and appends it to the ring, evicting the oldest entry once
// maxSnapshotsPerRun is exceeded.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	// AccessedAt changes on every Load, so it is left out of the content address;
	// otherwise two snapshots of an unchanged session would never dedupe.
	keyed := sess
	keyed.AccessedAt = time.Time{}
	data, err := json.Marshal(keyed)
	if err != nil {
		return Snapshot{}, errkind.Wrap(errkind.Persistence, err, "failed to serialize snapshot")
	}
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])
	snap := Snapshot{ID: id, TakenAt: time.Now(), Session: sess.Clone()}

	s.mu.Lock()
	ring := s.snapshots[sessionID]
	for _, existing := range ring {
		if existing.ID == id {
			s.mu.Unlock()
			return existing, nil // content-addressed dedup: identical state, no new entry
		}
	}
	ring = append(ring, snap)
	if len(ring) > s.maxSnapshotsPerRun {
		ring = ring[len(ring)-s.maxSnapshotsPerRun:]
	}
	s.snapshots[sessionID] = ring
	s.mu.Unlock()

	if snapBackend, ok := s.backend.(SnapshotBackend); ok {
		if err := snapBackend.SaveSnapshot(ctx, sessionID, snap); err != nil {
			return snap, err
		}
		if err := snapBackend.TrimSnapshots(ctx, sessionID, s.maxSnapshotsPerRun); err != nil {
			s.logger.Warn("failed to trim snapshot ring for %s: %v", sessionID, err)
		}
	}
	return snap, nil
}

// Snapshots returns the checkpoint ring for a session, oldest first. When the backend
// durably persists snapshots it is consulted directly so the ring survives a restart;
// otherwise the in-memory ring built up since the Store was constructed is returned.
func (s *Store) Snapshots(ctx context.Context, sessionID string) []Snapshot {
	if snapBackend, ok := s.backend.(SnapshotBackend); ok {
		ring, err := snapBackend.LoadSnapshots(ctx, sessionID)
		if err == nil {
			return ring
		}
		s.logger.Warn("failed to load snapshots for %s: %v", sessionID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snapshots[sessionID]...)
}

// autoSaveLoop periodically flushes dirty resident sessions to the backend. It snapshots
// each session under the lock, then performs the write outside it.
func (s *Store) autoSaveLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.autoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.autoSaveTick()
		}
	}
}

func (s *Store) autoSaveTick() {
	s.mu.Lock()
	var toSave []Session
	for id, isDirty := range s.dirty {
		if !isDirty {
			continue
		}
		if el, ok := s.resident[id]; ok {
			toSave = append(toSave, el.Value.(*lruEntry).s.Clone())
		}
	}
	s.dirty = make(map[string]bool)
	s.mu.Unlock()

	for _, sess := range toSave {
		if err := s.backend.Save(context.Background(), sess); err != nil {
			s.logger.Warn("auto-save failed for session %s: %v", sess.ID, err)
		}
	}
}

// checkpointLoop periodically snapshots every resident session into its checkpoint
// ring.
func (s *Store) checkpointLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkpointTick()
		}
	}
}

func (s *Store) checkpointTick() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.resident))
	for id := range s.resident {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if _, err := s.Snapshot(context.Background(), id); err != nil {
			s.logger.Warn("checkpoint failed for session %s: %v", id, err)
		}
	}
}
