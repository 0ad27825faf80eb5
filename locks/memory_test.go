package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Suite(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore(DefaultTTL, nil)
	})
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(DefaultTTL, nil)
	defer s.Close()

	clock := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ctx := context.Background()
	ok, err := s.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Just inside the TTL: still held, a different caller is denied.
	clock = clock.Add(DefaultTTL - time.Second)
	ok, err = s.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Past the TTL: a subsequent acquisition succeeds without a release.
	clock = clock.Add(2 * time.Second)
	held, err := s.IsHeld(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = s.Acquire(ctx, "bg-task", "alice", "node-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
