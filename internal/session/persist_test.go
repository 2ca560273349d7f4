package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroedu/hydrosim/internal/infra/storage"
)

func newSnapshotRepo(t *testing.T) *storage.SQLiteSnapshotRepository {
	t.Helper()
	db, err := storage.InitSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewSQLiteSnapshotRepository(db)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t, 4)
	repo := newSnapshotRepo(t)

	sess, err := s.Create("Karachi", "June", "Mint", "ur")
	require.NoError(t, err)
	sess.Engine.Stop()
	require.NoError(t, sess.Engine.Step())
	want := sess.Engine.Snapshot()

	require.NoError(t, s.Save(ctx, repo, sess))
	assert.Equal(t, int64(1), m.SnapshotWrites)

	stored, err := repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mint", stored.Crop)
	assert.Equal(t, "ur", stored.Language)

	// Loading replaces the live session with a paused copy of the stored state
	loaded, err := s.Load(ctx, repo, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "ur", loaded.Language)
	assert.True(t, loaded.Engine.Paused())
	assert.False(t, loaded.Engine.Running())
	assert.Equal(t, want, loaded.Engine.Snapshot())
	assert.Equal(t, 1, s.Len())
}

func TestLoadMissing(t *testing.T) {
	s, _ := newTestStore(t, 4)
	_, err := s.Load(context.Background(), newSnapshotRepo(t), "nope", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveAll(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 4)
	repo := newSnapshotRepo(t)

	for _, c := range []string{"Mint", "Spinach"} {
		_, err := s.Create("Lahore", "January", c, "")
		require.NoError(t, err)
	}

	n, err := s.SaveAll(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
