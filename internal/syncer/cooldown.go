package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Cooldown rate limits manual sync triggers per key.
type Cooldown interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

// RedisCooldown shares the cooldown across instances.
type RedisCooldown struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisCooldown allows one trigger per key every period.
func NewRedisCooldown(client redis.UniversalClient, prefix string, period time.Duration) *RedisCooldown {
	return &RedisCooldown{
		limiter: redis_rate.NewLimiter(client),
		limit:   redis_rate.Limit{Rate: 1, Burst: 1, Period: period},
		prefix:  prefix + "sync:",
	}
}

// Allow implements Cooldown.
func (c *RedisCooldown) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := c.limiter.Allow(ctx, c.prefix+key, c.limit)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed > 0, res.RetryAfter, nil
}

// MemoryCooldown is a process-local Cooldown.
type MemoryCooldown struct {
	period time.Duration
	now    func() time.Time
	mu     sync.Mutex
	last   map[string]time.Time
}

// NewMemoryCooldown allows one trigger per key every period.
func NewMemoryCooldown(period time.Duration) *MemoryCooldown {
	return &MemoryCooldown{period: period, now: time.Now, last: make(map[string]time.Time)}
}

// Allow implements Cooldown.
func (c *MemoryCooldown) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if t, ok := c.last[key]; ok {
		if wait := c.period - now.Sub(t); wait > 0 {
			return false, wait, nil
		}
	}
	c.last[key] = now
	return true, 0, nil
}
