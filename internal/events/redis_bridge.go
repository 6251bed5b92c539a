package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// RedisBridge implements Bridge using Redis pub/sub, one channel per event.
type RedisBridge struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisBridge creates a bridge publishing to "{prefix}events:{event}".
func NewRedisBridge(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, prefix: prefix + "events:", logger: logger}
}

// Channel returns the channel name for event.
func (r *RedisBridge) Channel(event string) string { return r.prefix + event }

// Publish implements Bridge.
func (r *RedisBridge) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.Channel(env.Event), body).Err()
}

// Subscribe implements Bridge.
func (r *RedisBridge) Subscribe(ctx context.Context, handler func(Envelope)) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	r.logger.Info("event bridge subscribed", zap.String("pattern", r.prefix+"*"))
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Debug("invalid bridged event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handler(env)
		}
	}
}
