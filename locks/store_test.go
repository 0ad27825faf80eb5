package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract shared by every backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("acquire denies second caller", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		ok, err := s.Acquire(ctx, "bg-task", "alice", "node-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Acquire(ctx, "bg-task", "alice", "node-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("release allows reacquisition", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		ok, err := s.Acquire(ctx, "bg-task", "alice", "node-1")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.Release(ctx, "bg-task", "alice", "node-1"))

		held, err := s.IsHeld(ctx, "bg-task", "alice", "node-1")
		require.NoError(t, err)
		assert.False(t, held)

		ok, err = s.Acquire(ctx, "bg-task", "alice", "node-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("different users never contend", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		ok, err := s.Acquire(ctx, "bg-task", "alice", "node-1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Acquire(ctx, "bg-task", "bob", "node-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release of absent lock is a no-op", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		assert.NoError(t, s.Release(ctx, "never-held", "alice", "node-1"))
	})

	t.Run("release instance sweeps only that instance", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		for _, id := range []string{"a", "b"} {
			ok, err := s.Acquire(ctx, id, "alice", "node-1")
			require.NoError(t, err)
			require.True(t, ok)
		}
		ok, err := s.Acquire(ctx, "c", "alice", "node-2")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.ReleaseInstance(ctx, "node-1"))

		held, err := s.IsHeld(ctx, "a", "alice", "node-1")
		require.NoError(t, err)
		assert.False(t, held)
		held, err = s.IsHeld(ctx, "c", "alice", "node-2")
		require.NoError(t, err)
		assert.True(t, held)
	})

	t.Run("concurrent acquisition admits exactly one", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.Acquire(ctx, "contended", "alice", "node-1")
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
