package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Collection is a JSON array of T stored under a single key.
type Collection[T any] struct {
	kv     KV
	key    string
	notify func([]T)
	logger *zap.Logger
}

// NewCollection creates a collection. notify, if non-nil, receives the new
// array after every successful Save.
func NewCollection[T any](kv KV, key string, notify func([]T), logger *zap.Logger) *Collection[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection[T]{kv: kv, key: key, notify: notify, logger: logger}
}

// Key returns the storage key.
func (c *Collection[T]) Key() string { return c.key }

// GetAll returns the cached array. Missing keys, read failures and malformed
// values all yield an empty slice; failures are logged, not returned.
func (c *Collection[T]) GetAll(ctx context.Context) []T {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", c.key), zap.Error(err))
		return []T{}
	}
	if !ok || raw == "" {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.logger.Warn("cache value is not an array, resetting", zap.String("key", c.key), zap.Error(err))
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// Save persists the full array and then notifies.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, string(raw)); err != nil {
		return err
	}
	if c.notify != nil {
		c.notify(items)
	}
	return nil
}

// Document is a single JSON object of T stored under one key.
type Document[T any] struct {
	kv     KV
	key    string
	notify func(T)
	logger *zap.Logger
}

// NewDocument creates a document store.
func NewDocument[T any](kv KV, key string, notify func(T), logger *zap.Logger) *Document[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document[T]{kv: kv, key: key, notify: notify, logger: logger}
}

// Get returns the stored object, or the zero value when missing or malformed.
func (d *Document[T]) Get(ctx context.Context) T {
	var v T
	raw, ok, err := d.kv.Get(ctx, d.key)
	if err != nil {
		d.logger.Warn("cache read failed", zap.String("key", d.key), zap.Error(err))
		return v
	}
	if !ok || raw == "" {
		return v
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		d.logger.Warn("cache value is malformed, resetting", zap.String("key", d.key), zap.Error(err))
		var zero T
		return zero
	}
	return v
}

// Save persists the object and then notifies.
func (d *Document[T]) Save(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", d.key, err)
	}
	if err := d.kv.Set(ctx, d.key, string(raw)); err != nil {
		return err
	}
	if d.notify != nil {
		d.notify(v)
	}
	return nil
}
