package session

import "context"

// Backend is the persistence trait of save, load, delete, list, and search over an
// abstract store. Implementations must return a NotFound-kind error from Load when the
// id is absent, and a Persistence-kind error for any other I/O failure.
type Backend interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, owner string) ([]Session, error)
	Search(ctx context.Context, owner, query string, filters map[string]string) ([]Session, error)
}

// SnapshotBackend is an optional capability a Backend may implement to durably persist a
// session's checkpoint ring instead of the Store
// holding it only in memory. The sqlitestore backend implements this; fsstore does not,
// and Store falls back to an in-memory-only ring for it.
type SnapshotBackend interface {
	SaveSnapshot(ctx context.Context, sessionID string, snap Snapshot) error
	LoadSnapshots(ctx context.Context, sessionID string) ([]Snapshot, error)
	TrimSnapshots(ctx context.Context, sessionID string, keep int) error
}
