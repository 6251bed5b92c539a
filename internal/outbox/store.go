package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store persists queued mutations.
type Store interface {
	Enqueue(ctx context.Context, m *Mutation) error
	// Dequeue pops the oldest mutation, waiting up to wait for one.
	// It returns nil, nil when the queue stays empty.
	Dequeue(ctx context.Context, wait time.Duration) (*Mutation, error)
	// Retry re-queues m with an incremented attempt, or dead-letters it once
	// maxRetries attempts have been made. It reports whether m was dead-lettered.
	Retry(ctx context.Context, m *Mutation, maxRetries int) (dead bool, err error)
	// Bury dead-letters m immediately.
	Bury(ctx context.Context, m *Mutation) error
	MarkStatus(ctx context.Context, id string, status State) error
	Status(ctx context.Context, id string) (State, error)
	Stats(ctx context.Context) (Stats, error)
	// Dead lists up to limit dead-lettered mutations, oldest first.
	Dead(ctx context.Context, limit int64) ([]Mutation, error)
}

// RedisStore implements Store with two Redis lists and a status hash.
type RedisStore struct {
	client     redis.UniversalClient
	pendingKey string
	deadKey    string
	statusKey  string
	logger     *zap.Logger
}

// NewRedisStore creates a store under "{prefix}outbox:*".
func NewRedisStore(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:     client,
		pendingKey: prefix + "outbox:pending",
		deadKey:    prefix + "outbox:dead",
		statusKey:  prefix + "outbox:status",
		logger:     logger,
	}
}

func (s *RedisStore) push(ctx context.Context, key string, m *Mutation) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mutation: %w", err)
	}
	if err := s.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return s.MarkStatus(ctx, m.ID, m.Status)
}

// Enqueue implements Store.
func (s *RedisStore) Enqueue(ctx context.Context, m *Mutation) error {
	m.Status = StatePending
	return s.push(ctx, s.pendingKey, m)
}

// Dequeue implements Store. A zero wait does not block.
func (s *RedisStore) Dequeue(ctx context.Context, wait time.Duration) (*Mutation, error) {
	var raw string
	if wait <= 0 {
		v, err := s.client.LPop(ctx, s.pendingKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		raw = v
	} else {
		result, err := s.client.BLPop(ctx, wait, s.pendingKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if len(result) < 2 {
			return nil, nil
		}
		raw = result[1]
	}
	var m Mutation
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		s.logger.Warn("invalid outbox payload", zap.String("raw", raw), zap.Error(err))
		return nil, nil
	}
	return &m, nil
}

// Retry implements Store.
func (s *RedisStore) Retry(ctx context.Context, m *Mutation, maxRetries int) (bool, error) {
	m.Attempt++
	if m.Attempt >= maxRetries {
		return true, s.Bury(ctx, m)
	}
	m.Status = StatePending
	return false, s.push(ctx, s.pendingKey, m)
}

// Bury implements Store.
func (s *RedisStore) Bury(ctx context.Context, m *Mutation) error {
	m.Status = StateFailed
	if err := s.push(ctx, s.deadKey, m); err != nil {
		s.logger.Error("dead-letter push failed", zap.String("mutation_id", m.ID), zap.Error(err))
		return err
	}
	return nil
}

// MarkStatus implements Store. Delivered mutations are dropped from the hash.
func (s *RedisStore) MarkStatus(ctx context.Context, id string, status State) error {
	if status == StateDone {
		return s.client.HDel(ctx, s.statusKey, id).Err()
	}
	return s.client.HSet(ctx, s.statusKey, id, string(status)).Err()
}

// Status implements Store. Unknown ids report StateDone.
func (s *RedisStore) Status(ctx context.Context, id string) (State, error) {
	v, err := s.client.HGet(ctx, s.statusKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return StateDone, nil
	}
	if err != nil {
		return "", err
	}
	return State(v), nil
}

// Stats implements Store.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	pending, err := s.client.LLen(ctx, s.pendingKey).Result()
	if err != nil {
		return Stats{}, err
	}
	dead, err := s.client.LLen(ctx, s.deadKey).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Pending: pending, Dead: dead}, nil
}

// Dead implements Store.
func (s *RedisStore) Dead(ctx context.Context, limit int64) ([]Mutation, error) {
	raws, err := s.client.LRange(ctx, s.deadKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Mutation, 0, len(raws))
	for _, raw := range raws {
		var m Mutation
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// MemoryStore is a process-local Store used when Redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	pending  []Mutation
	dead     []Mutation
	statuses map[string]State
	signal   chan struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]State), signal: make(chan struct{}, 1)}
}

func (s *MemoryStore) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Enqueue implements Store.
func (s *MemoryStore) Enqueue(_ context.Context, m *Mutation) error {
	m.Status = StatePending
	s.mu.Lock()
	s.pending = append(s.pending, *m)
	s.statuses[m.ID] = StatePending
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *MemoryStore) pop() *Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	m := s.pending[0]
	s.pending = s.pending[1:]
	return &m
}

// Dequeue implements Store.
func (s *MemoryStore) Dequeue(ctx context.Context, wait time.Duration) (*Mutation, error) {
	if m := s.pop(); m != nil || wait <= 0 {
		return m, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case <-s.signal:
		return s.pop(), nil
	}
}

// Retry implements Store.
func (s *MemoryStore) Retry(ctx context.Context, m *Mutation, maxRetries int) (bool, error) {
	m.Attempt++
	if m.Attempt >= maxRetries {
		return true, s.Bury(ctx, m)
	}
	return false, s.Enqueue(ctx, m)
}

// Bury implements Store.
func (s *MemoryStore) Bury(_ context.Context, m *Mutation) error {
	m.Status = StateFailed
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, *m)
	s.statuses[m.ID] = StateFailed
	return nil
}

// MarkStatus implements Store.
func (s *MemoryStore) MarkStatus(_ context.Context, id string, status State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == StateDone {
		delete(s.statuses, id)
		return nil
	}
	s.statuses[id] = status
	return nil
}

// Status implements Store.
func (s *MemoryStore) Status(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[id]; ok {
		return st, nil
	}
	return StateDone, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Pending: int64(len(s.pending)), Dead: int64(len(s.dead))}, nil
}

// Dead implements Store.
func (s *MemoryStore) Dead(_ context.Context, limit int64) ([]Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.dead))
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]Mutation(nil), s.dead[:n]...), nil
}
