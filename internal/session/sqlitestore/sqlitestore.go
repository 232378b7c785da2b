// Package sqlitestore is a session.Backend implementation on top of modernc.org/sqlite
// (a pure-Go driver, so no cgo toolchain is required at build time), using WAL journal
// mode and a busy timeout, with a single session document table plus a snapshot table.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/session"
)

// Backend is a session.Backend storing each session as one JSON document row.
type Backend struct {
	db *sql.DB
}

var (
	_ session.Backend = (*Backend)(nil)
	_ session.SnapshotBackend = (*Backend)(nil)
)

// Open connects to (and initialises) a SQLite database at path, matching
// connection string convention: foreign keys on, WAL journalling, a busy timeout so
// concurrent writers back off instead of failing immediately.
func Open(path string) (*Backend, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to open sqlite database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close() //nolint:errcheck // best-effort close on a failed open
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to ping sqlite database")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		data TEXT NOT NULL
	)`); err != nil {
		_ = db.Close() //nolint:errcheck // best-effort close on a failed open
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to create sessions table")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner)`); err != nil {
		_ = db.Close() //nolint:errcheck // best-effort close on a failed open
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to create owner index")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_snapshots (
		session_id TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (session_id, snapshot_id)
	)`); err != nil {
		_ = db.Close() //nolint:errcheck // best-effort close on a failed open
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to create session_snapshots table")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_session_taken ON session_snapshots(session_id, taken_at)`); err != nil {
		_ = db.Close() //nolint:errcheck // best-effort close on a failed open
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to create snapshot index")
	}
	return &Backend{db: db}, nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Save implements session.Backend via an INSERT ... ON CONFLICT DO UPDATE upsert, so
// repeated saves of the same session id are idempotent.
func (b *Backend) Save(ctx context.Context, s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to marshal session "+s.ID)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO sessions (id, owner, name, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner=excluded.owner, name=excluded.name, data=excluded.data`,
		s.ID, s.Owner, s.Name, string(data))
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to save session "+s.ID)
	}
	return nil
}

// Load implements session.Backend, returning NotFound when id is absent.
func (b *Backend) Load(ctx context.Context, id string) (session.Session, error) {
	var data string
	err := b.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, errkind.New(errkind.NotFound, "no such session: "+id)
	}
	if err != nil {
		return session.Session{}, errkind.Wrap(errkind.Persistence, err, "failed to load session "+id)
	}
	var s session.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return session.Session{}, errkind.Wrap(errkind.Persistence, err, "failed to parse session "+id)
	}
	return s, nil
}

// Delete implements session.Backend; deleting an absent session is not an error.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to delete session "+id)
	}
	return nil
}

// List implements session.Backend.
func (b *Backend) List(ctx context.Context, owner string) ([]session.Session, error) {
	return b.Search(ctx, owner, "", nil)
}

// Search implements session.Backend. It filters by owner and name substring in SQL, then
// applies any remaining config-key filters in Go against the decoded rows.
func (b *Backend) Search(ctx context.Context, owner, query string, filters map[string]string) ([]session.Session, error) {
	var (
		rows *sql.Rows
		err error
	)
	switch {
	case owner != "" && query != "":
		rows, err = b.db.QueryContext(ctx,
			`SELECT data FROM sessions WHERE owner = ? AND name LIKE ? ORDER BY id`,
			owner, "%"+query+"%")
	case owner != "":
		rows, err = b.db.QueryContext(ctx, `SELECT data FROM sessions WHERE owner = ? ORDER BY id`, owner)
	case query != "":
		rows, err = b.db.QueryContext(ctx, `SELECT data FROM sessions WHERE name LIKE ? ORDER BY id`, "%"+query+"%")
	default:
		rows, err = b.db.QueryContext(ctx, `SELECT data FROM sessions ORDER BY id`)
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to search sessions")
	}
	defer rows.Close() //nolint:errcheck // read-side close, nothing actionable on failure

	var out []session.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errkind.Wrap(errkind.Persistence, err, "failed to scan session row")
		}
		var s session.Session
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			continue
		}
		if matchesFilters(s, filters) {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

func matchesFilters(s session.Session, filters map[string]string) bool {
	for k, v := range filters {
		if s.Config[k] != v {
			return false
		}
	}
	return true
}

// SaveSnapshot implements session.SnapshotBackend, persisting one checkpoint ring entry
// into session_snapshots.
func (b *Backend) SaveSnapshot(ctx context.Context, sessionID string, snap session.Snapshot) error {
	data, err := json.Marshal(snap.Session)
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to marshal snapshot "+snap.ID)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (session_id, snapshot_id, taken_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, snapshot_id) DO NOTHING`,
		sessionID, snap.ID, snap.TakenAt.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to save snapshot "+snap.ID)
	}
	return nil
}

// LoadSnapshots implements session.SnapshotBackend, returning the ring oldest-first.
func (b *Backend) LoadSnapshots(ctx context.Context, sessionID string) ([]session.Snapshot, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT snapshot_id, taken_at, data FROM session_snapshots WHERE session_id = ? ORDER BY taken_at ASC`,
		sessionID)
	if err != nil {
		return nil, errkind.Wrap(errkind.Persistence, err, "failed to load snapshots for "+sessionID)
	}
	defer rows.Close() //nolint:errcheck // read-side close, nothing actionable on failure

	var out []session.Snapshot
	for rows.Next() {
		var id, takenAt, data string
		if err := rows.Scan(&id, &takenAt, &data); err != nil {
			return nil, errkind.Wrap(errkind.Persistence, err, "failed to scan snapshot row")
		}
		var sess session.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			t = time.Time{}
		}
		out = append(out, session.Snapshot{ID: id, TakenAt: t, Session: sess})
	}
	return out, rows.Err()
}

// TrimSnapshots implements session.SnapshotBackend, deleting all but the keep most
// recent entries for sessionID so the ring never grows unbounded.
func (b *Backend) TrimSnapshots(ctx context.Context, sessionID string, keep int) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ? AND snapshot_id NOT IN (
		SELECT snapshot_id FROM session_snapshots WHERE session_id = ? ORDER BY taken_at DESC LIMIT ?
	)`, sessionID, sessionID, keep)
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to trim snapshots for "+sessionID)
	}
	return nil
}
