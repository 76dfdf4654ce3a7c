package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/redis"
)

// RedisStore keeps login state in Redis under a per-profile namespace
type RedisStore struct {
	client  *redis.Redis
	profile string
}

func NewRedisStore(client *redis.Redis, profile string) *RedisStore {
	return &RedisStore{client: client, profile: profile}
}

func (s *RedisStore) key(name string) string {
	return redis.ZkLoginKey(s.profile, name)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		if redis.IsNil(err) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), string(value), ttl); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = s.key(key)
	}
	return s.client.Delete(ctx, namespaced...)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
