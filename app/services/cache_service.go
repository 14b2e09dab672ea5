// Package services provides external service integrations and technical concerns like caching, cost lookups, and tokens
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore is the calculation cache abstraction. Implementations report a
// miss as (nil, false, nil) and reserve errors for transport failures.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// RedisCacheStore implements CacheStore on a shared Redis client
type RedisCacheStore struct {
	client *redis.Client
}

// NewRedisCacheStore wraps an already connected Redis client
func NewRedisCacheStore(client *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{client: client}
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	bs, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return bs, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// FlushPrefix deletes every key under the prefix with SCAN, never KEYS
func (s *RedisCacheStore) FlushPrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (s *RedisCacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryCacheStore implements CacheStore with an in-process map. Suitable for
// single-instance deployments and tests. Expired entries are dropped lazily
// on Get and in bulk by Sweep.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCacheStore creates an empty in-process cache
func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{entries: make(map[string]memoryCacheEntry)}
}

func (s *MemoryCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (s *MemoryCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryCacheEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryCacheStore) FlushPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *MemoryCacheStore) Ping(ctx context.Context) error {
	return nil
}

// Sweep removes every expired entry and returns how many were dropped
func (s *MemoryCacheStore) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of stored entries
func (s *MemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// NoopCacheStore implements CacheStore for deployments that run without a
// cache. Every Get misses and writes vanish.
type NoopCacheStore struct{}

// NewNoopCacheStore creates a cache store that stores nothing
func NewNoopCacheStore() *NoopCacheStore {
	return &NoopCacheStore{}
}

func (NoopCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (NoopCacheStore) FlushPrefix(ctx context.Context, prefix string) error {
	return nil
}

func (NoopCacheStore) Ping(ctx context.Context) error {
	return nil
}
