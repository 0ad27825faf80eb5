// Package locks implements the workflow lock registry: a scoped, TTL-based
// mutual-exclusion primitive used to suppress duplicate background work across
// concurrent requests.
//
// Locks are advisory and scoped by (lock id, user, engine instance); two
// different users never contend for the same lock. Expiry is checked on read,
// so a crashed holder is displaced after the TTL without any sweeper. Locks
// are not required to survive a process restart.
package locks

import (
	"context"
	"time"
)

// DefaultTTL is the safety TTL after which a held lock may be re-acquired by
// another caller even without an explicit release.
const DefaultTTL = 10 * time.Minute

// Store is the lock registry contract. Implementations must be safe under
// concurrent access from multiple in-flight requests for the same user.
type Store interface {
	// Acquire attempts to take the lock. It returns false when the lock is
	// already held and not expired. There is no queueing: a denied acquirer
	// does not wait.
	Acquire(ctx context.Context, id, user, instance string) (bool, error)

	// Release drops the lock if held. Releasing an absent lock is a no-op.
	Release(ctx context.Context, id, user, instance string) error

	// IsHeld reports whether the lock is currently held and unexpired.
	IsHeld(ctx context.Context, id, user, instance string) (bool, error)

	// ReleaseInstance drops every lock owned by the given engine instance.
	// Called at startup so restarts shed stale locks.
	ReleaseInstance(ctx context.Context, instance string) error

	// Close releases backend resources.
	Close() error
}
