package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "loom:lock:"

// RedisStore backs the lock registry with redis so multiple engine instances
// serving the same users share one lock table. Expiry rides on redis TTLs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// RedisConfig configures the redis lock backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// DefaultRedisConfig returns localhost defaults with the standard lock TTL.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
		TTL:  DefaultTTL,
	}
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "locks_redis")),
	}, nil
}

func redisKey(id, user, instance string) string {
	return fmt.Sprintf("%s%s:%s:%s", redisKeyPrefix, id, user, instance)
}

func (s *RedisStore) Acquire(ctx context.Context, id, user, instance string) (bool, error) {
	acquired, err := s.client.SetNX(ctx, redisKey(id, user, instance), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire failed: %w", err)
	}
	if acquired {
		s.logger.Debug("lock acquired",
			zap.String("lock_id", id),
			zap.String("user", user),
		)
	}
	return acquired, nil
}

func (s *RedisStore) Release(ctx context.Context, id, user, instance string) error {
	if err := s.client.Del(ctx, redisKey(id, user, instance)).Err(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}

func (s *RedisStore) IsHeld(ctx context.Context, id, user, instance string) (bool, error) {
	count, err := s.client.Exists(ctx, redisKey(id, user, instance)).Result()
	if err != nil {
		return false, fmt.Errorf("lock check failed: %w", err)
	}
	return count > 0, nil
}

func (s *RedisStore) ReleaseInstance(ctx context.Context, instance string) error {
	suffix := ":" + instance
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("lock scan failed: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, stale...).Err(); err != nil {
		return fmt.Errorf("lock sweep failed: %w", err)
	}
	s.logger.Info("released stale instance locks",
		zap.String("instance", instance),
		zap.Int("count", len(stale)),
	)
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
