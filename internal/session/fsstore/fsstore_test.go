package fsstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/session"
	"github.com/infer-no-dev/devkit/internal/session/fsstore"
)

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	b, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
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

func TestLoadMissingSessionIsNotFound(t *testing.T) {
	b, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	_, err = b.Load(context.Background(), "ghost")
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.NotFound, kind)
}

func TestSearchFiltersByOwnerQueryAndConfig(t *testing.T) {
	b, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, session.Session{ID: "1", Name: "alpha project", Owner: "alice", Config: map[string]string{"team": "core"}}))
	require.NoError(t, b.Save(ctx, session.Session{ID: "2", Name: "beta project", Owner: "alice", Config: map[string]string{"team": "infra"}}))
	require.NoError(t, b.Save(ctx, session.Session{ID: "3", Name: "alpha project", Owner: "bob"}))

	byOwner, err := b.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byOwner, 2)

	byQuery, err := b.Search(ctx, "alice", "alpha", nil)
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	require.Equal(t, "1", byQuery[0].ID)

	byFilter, err := b.Search(ctx, "alice", "", map[string]string{"team": "infra"})
	require.NoError(t, err)
	require.Len(t, byFilter, 1)
	require.Equal(t, "2", byFilter[0].ID)
}

func TestDeleteMissingSessionIsNotAnError(t *testing.T) {
	b, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, b.Delete(context.Background(), "never-existed"))
}
