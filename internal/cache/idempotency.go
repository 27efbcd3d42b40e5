package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers keys that were already processed.
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It returns false when key was already recorded.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget drops key so a failed attempt can be retried.
	Forget(ctx context.Context, key string) error
}

// RedisIdempotencyStore implements IdempotencyStore on Redis SETNX so every
// instance shares the same view of processed keys.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client.
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "idempotency:"
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s processed: %w", key, err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("forget %s: %w", key, err)
	}
	return nil
}

// MemoryIdempotencyStore keeps keys in process memory.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryIdempotencyStore builds an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expiry, ok := s.keys[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

var (
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
