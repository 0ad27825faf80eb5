package locks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locks.db")
	store, err := NewSQLiteStore(path, DefaultTTL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Suite(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return newSQLiteTestStore(t)
	})
}

func TestSQLiteStore_TTLExpiry(t *testing.T) {
	store := newSQLiteTestStore(t)

	clock := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	ctx := context.Background()
	ok, err := store.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(DefaultTTL - time.Second)
	ok, err = store.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.False(t, ok)

	clock = clock.Add(2 * time.Second)
	held, err := store.IsHeld(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.False(t, held)

	// An expired row is displaced in place rather than blocking the caller.
	ok, err = store.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks.db")

	first, err := NewSQLiteStore(path, DefaultTTL, nil)
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := first.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, first.Close())

	// A restarted instance sheds its own stale rows on boot.
	second, err := NewSQLiteStore(path, DefaultTTL, nil)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.ReleaseInstance(ctx, "node-1"))
	held, err := second.IsHeld(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.False(t, held)
}
