package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/session"
	"github.com/infer-no-dev/devkit/internal/session/sqlitestore"
)

func openTestBackend(t *testing.T) *sqlitestore.Backend {
	t.Helper()
	b, err := sqlitestore.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	sess := session.Session{ID: "s1", Name: "demo", Owner: "alice"}
	require.NoError(t, b.Save(ctx, sess))

	loaded, err := b.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "demo", loaded.Name)

	require.NoError(t, b.Delete(ctx, "s1"))
	_, err = b.Load(ctx, "s1")
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.NotFound, kind)
}

func TestSaveUpsertsOnConflict(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, session.Session{ID: "s1", Name: "v1", Owner: "alice"}))
	require.NoError(t, b.Save(ctx, session.Session{ID: "s1", Name: "v2", Owner: "alice"}))

	loaded, err := b.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "v2", loaded.Name)
}

func TestSearchFiltersByOwnerAndQuery(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, session.Session{ID: "1", Name: "alpha project", Owner: "alice"}))
	require.NoError(t, b.Save(ctx, session.Session{ID: "2", Name: "beta project", Owner: "alice"}))
	require.NoError(t, b.Save(ctx, session.Session{ID: "3", Name: "alpha project", Owner: "bob"}))

	byOwner, err := b.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byOwner, 2)

	byQuery, err := b.Search(ctx, "alice", "alpha", nil)
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	require.Equal(t, "1", byQuery[0].ID)
}

func TestLoadMissingSessionIsNotFound(t *testing.T) {
	b := openTestBackend(t)
	_, err := b.Load(context.Background(), "ghost")
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.NotFound, kind)
}
