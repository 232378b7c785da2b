// Package fsstore is the default filesystem-backed session.Backend: each
// session is a whole-document JSON snapshot at sessions/<session_id>.json, written
// atomically via a temp file plus rename.
package fsstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/session"
)

// Backend is a session.Backend rooted at a data directory.
type Backend struct {
	dir string
}

var _ session.Backend = (*Backend)(nil)

// New builds a Backend rooted at dir, creating the sessions subdirectory if absent.
func New(dir string) (*Backend, error) {
	sessionsDir := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to create sessions directory")
	}
	return &Backend{dir: dir}, nil
}

func (b *Backend) path(id string) string {
	return filepath.Join(b.dir, "sessions", id+".json")
}

// Save implements session.Backend, writing atomically via temp file + rename.
func (b *Backend) Save(_ context.Context, s session.Session) error {
	data, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to marshal session "+s.ID)
	}
	target := b.path(s.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // session state is not secret material
		return errkind.Wrap(errkind.Persistence, err, "failed to write session "+s.ID)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to commit session "+s.ID)
	}
	return nil
}

// Load implements session.Backend, returning NotFound when the session file is absent.
func (b *Backend) Load(_ context.Context, id string) (session.Session, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return session.Session{}, errkind.New(errkind.NotFound, "no such session: "+id)
		}
		return session.Session{}, errkind.Wrap(errkind.Persistence, err, "failed to read session "+id)
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return session.Session{}, errkind.Wrap(errkind.Persistence, err, "failed to parse session "+id)
	}
	return s, nil
}

// Delete implements session.Backend; deleting an absent session is not an error.
func (b *Backend) Delete(_ context.Context, id string) error {
	if err := os.Remove(b.path(id)); err != nil && !os.IsNotExist(err) {
		return errkind.Wrap(errkind.Persistence, err, "failed to delete session "+id)
	}
	return nil
}

// List implements session.Backend by scanning the sessions directory.
func (b *Backend) List(ctx context.Context, owner string) ([]session.Session, error) {
	return b.Search(ctx, owner, "", nil)
}

// Search implements session.Backend with a linear scan matching query against the
// session name and filters against session.Config entries. The filesystem backend is the
// spec's default, not a performance-critical path.
func (b *Backend) Search(ctx context.Context, owner, query string, filters map[string]string) ([]session.Session, error) {
	entries, err := os.ReadDir(filepath.Join(b.dir, "sessions"))
	if err != nil {
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to list sessions directory")
	}

	var out []session.Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		s, err := b.Load(ctx, id)
		if err != nil {
			continue // a concurrently-deleted or malformed file is skipped, not fatal to the scan
		}
		if owner != "" && s.Owner != owner {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			continue
		}
		if !matchesFilters(s, filters) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchesFilters(s session.Session, filters map[string]string) bool {
	for k, v := range filters {
		if s.Config[k] != v {
			return false
		}
	}
	return true
}
