package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker backs the per-source crawl serialization with SET NX leases.
// The TTL bounds how long a crashed crawler can hold a source hostage.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "crawl:lock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

// MemoryLocker is a single-process fallback used when no Redis is configured,
// and by tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
