package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived exclusive leases.
type Locker interface {
	// TryLock acquires key for ttl. ok is false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker leases keys with SET NX PX and releases only its own token.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, keyPrefix: "lock:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	fullKey := l.keyPrefix + key
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}
	return unlock, true, nil
}

// MemoryLocker leases keys within one process.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

// NewMemoryLocker builds an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[string]lease{}, now: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if current, ok := l.leases[key]; ok && now.Before(current.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	unlock := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.leases[key]; ok && current.token == token {
			delete(l.leases, key)
		}
		return nil
	}
	return unlock, true, nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)
