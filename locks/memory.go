package locks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is the in-process Store. It is the default backend for single
// instance deployments; restarts drop all locks for free.
type MemoryStore struct {
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	held map[memoryKey]time.Time
}

type memoryKey struct {
	id       string
	user     string
	instance string
}

// NewMemoryStore creates an in-memory store. A non-positive ttl selects
// DefaultTTL.
func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		ttl:    ttl,
		logger: logger.With(zap.String("component", "locks_memory")),
		now:    time.Now,
		held:   make(map[memoryKey]time.Time),
	}
}

func (s *MemoryStore) Acquire(ctx context.Context, id, user, instance string) (bool, error) {
	key := memoryKey{id: id, user: user, instance: instance}

	s.mu.Lock()
	defer s.mu.Unlock()

	if acquiredAt, ok := s.held[key]; ok && s.now().Sub(acquiredAt) < s.ttl {
		return false, nil
	}
	s.held[key] = s.now()
	s.logger.Debug("lock acquired",
		zap.String("lock_id", id),
		zap.String("user", user),
	)
	return true, nil
}

func (s *MemoryStore) Release(ctx context.Context, id, user, instance string) error {
	key := memoryKey{id: id, user: user, instance: instance}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
	return nil
}

func (s *MemoryStore) IsHeld(ctx context.Context, id, user, instance string) (bool, error) {
	key := memoryKey{id: id, user: user, instance: instance}

	s.mu.Lock()
	defer s.mu.Unlock()

	acquiredAt, ok := s.held[key]
	if !ok {
		return false, nil
	}
	if s.now().Sub(acquiredAt) >= s.ttl {
		delete(s.held, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) ReleaseInstance(ctx context.Context, instance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.held {
		if key.instance == instance {
			delete(s.held, key)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(map[memoryKey]time.Time)
	return nil
}
