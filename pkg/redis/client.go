// Package redis connects the shared Redis used for the cache, the outbox,
// sync cooldowns and the cross-instance event bridge.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
	// PingAttempts is how many times to try PING before giving up.
	PingAttempts int
	PingBackoff  time.Duration
}

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

type pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := ping(ctx, rdb, opts.PingAttempts, opts.PingBackoff, logger); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	logger.Info("Redis client connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Client{Client: rdb, logger: logger}, nil
}

// Healthy reports whether Redis answers PING.
func (c *Client) Healthy(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func ping(ctx context.Context, p pinger, attempts int, backoff time.Duration, logger *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = p.Ping(ctx).Err(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		logger.Warn("redis not ready, retrying", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
