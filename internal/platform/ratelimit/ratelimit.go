// Package ratelimit throttles vote-attempt bursts per client key. It is a UX
// shield in front of the ballot service, never a correctness mechanism; the
// storage-level uniqueness constraint remains the guarantee.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	platformredis "agora/internal/platform/redis"
)

// Limiter answers whether a keyed caller is still within its attempt budget.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, period time.Duration) (bool, error)
}

// RedisLimiter counts attempts with INCR and lets the key expire after the
// period, so a burst resets itself without cleanup jobs.
type RedisLimiter struct {
	client *platformredis.Client
}

func NewRedisLimiter(client *platformredis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, period time.Duration) (bool, error) {
	redisKey := "rate_limit:" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, period).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// MemoryLimiter is the in-process fallback used when Redis is not configured,
// and in tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, period time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(period)}
		return true, nil
	}
	w.count++
	return w.count <= limit, nil
}
