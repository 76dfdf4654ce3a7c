package storage

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
)

// MemoryStore implements domain.KeyValueStore using ttlcache.
// Contents are lost when the process exits.
type MemoryStore struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStore creates an in-memory store with automatic cleanup
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	go cache.Start()

	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, domain.ErrKeyNotFound
	}
	value := item.Value()
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.cache.Set(key, stored, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

// Close stops the cleanup goroutine
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}
