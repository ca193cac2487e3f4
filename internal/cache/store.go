package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store is the cache entry storage driver. Get misses and transport errors
// both report !ok: the cache degrades to a miss, never to a failed search.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
}

// kv is the byte-store subset the redis driver needs (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore keeps entries in the shared store so replicas share hits.
type RedisStore struct {
	kv kv
}

// NewRedisStore creates the shared cache driver.
func NewRedisStore(kv kv) *RedisStore {
	return &RedisStore{kv: kv}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	_ = s.kv.SetWithTTL(ctx, key, data, ttl)
}

// MemoryStore keeps entries in an in-process expirable LRU. Suited for
// single-replica deployments and tests.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates the in-process cache driver.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte, _ time.Duration) {
	s.lru.Add(key, data)
}
