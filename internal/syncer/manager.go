// Package syncer reconciles the local cache of each entity with the remote store.
//
// Writes are optimistic: the cache is updated first, then the remote store is
// tried once. A remote failure leaves the record pending_sync and queues an
// outbox mutation that the drainer replays later.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/internal/telemetry"
	"github.com/assoc-site/backend/pkg/remote"
)

// ErrNotFound is returned for ids absent from the local cache.
var ErrNotFound = errors.New("record not found")

// LocalStore is the cached collection of one entity.
type LocalStore[T any] interface {
	GetAll(ctx context.Context) []T
	Save(ctx context.Context, items []T) error
}

// Enqueuer queues mutations that could not reach the remote store.
type Enqueuer interface {
	Enqueue(ctx context.Context, entity string, op outbox.Op, recordID int64, payload any, cause error) error
}

// Options configures a Manager.
type Options[T any] struct {
	Name   string
	Local  LocalStore[T]
	Remote remote.Table[T]
	// DedupKey derives the heuristic duplicate key used by Upload.
	DedupKey func(*T) string
	Outbox   Enqueuer
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger
}

// Manager is the entity manager for T: local CRUD plus remote sync.
type Manager[T any, P models.Record[T]] struct {
	name    string
	local   LocalStore[T]
	remote  remote.Table[T]
	key     func(*T) string
	outbox  Enqueuer
	metrics *telemetry.Metrics
	logger  *zap.Logger
	mu      sync.Mutex
}

// New creates a manager. The pointer type parameter is inferred:
//
//	members := syncer.New[models.Member](opts)
func New[T any, P models.Record[T]](opts Options[T]) *Manager[T, P] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.Name
	if name == "" && opts.Remote != nil {
		name = opts.Remote.Name()
	}
	return &Manager[T, P]{
		name:    name,
		local:   opts.Local,
		remote:  opts.Remote,
		key:     opts.DedupKey,
		outbox:  opts.Outbox,
		metrics: opts.Metrics,
		logger:  logger.With(zap.String("entity", name)),
	}
}

func meta[T any, P models.Record[T]](item *T) *models.Meta { return P(item).GetMeta() }

// Name returns the entity name.
func (m *Manager[T, P]) Name() string { return m.name }

// Remote returns the remote table.
func (m *Manager[T, P]) Remote() remote.Table[T] { return m.remote }

// GetAll returns the cached collection.
func (m *Manager[T, P]) GetAll(ctx context.Context) []T {
	return m.local.GetAll(ctx)
}

// GetByID returns the cached record with id.
func (m *Manager[T, P]) GetByID(ctx context.Context, id int64) (T, error) {
	items := m.local.GetAll(ctx)
	if i := m.indexOf(items, id); i >= 0 {
		return items[i], nil
	}
	var zero T
	return zero, ErrNotFound
}

func (m *Manager[T, P]) indexOf(items []T, id int64) int {
	for i := range items {
		if meta[T, P](&items[i]).ID == id {
			return i
		}
	}
	return -1
}

// nextLocalID allocates max(local ids) + 1 below the remote id range.
func (m *Manager[T, P]) nextLocalID(items []T) int64 {
	used := make(map[int64]bool, len(items))
	var max int64
	for i := range items {
		id := meta[T, P](&items[i]).ID
		used[id] = true
		if id <= models.RemoteIDThreshold && id > max {
			max = id
		}
	}
	if max < models.RemoteIDThreshold {
		return max + 1
	}
	for id := int64(1); id <= models.RemoteIDThreshold; id++ {
		if !used[id] {
			return id
		}
	}
	return models.RemoteIDThreshold
}

func (m *Manager[T, P]) save(ctx context.Context, items []T) {
	if err := m.local.Save(ctx, items); err != nil {
		m.logger.Warn("local cache write failed", zap.Error(err))
	}
}

func (m *Manager[T, P]) deferToOutbox(ctx context.Context, op outbox.Op, id int64, payload any, cause error) {
	m.metrics.RemoteError(m.name, string(remote.CodeOf(cause)))
	if m.outbox == nil {
		m.logger.Warn("remote write failed, kept locally", zap.String("op", string(op)), zap.Int64("id", id), zap.Error(cause))
		return
	}
	if err := m.outbox.Enqueue(ctx, m.name, op, id, payload, cause); err != nil {
		m.logger.Error("remote write failed and could not be queued", zap.String("op", string(op)), zap.Int64("id", id), zap.Error(err))
	}
}

// Add stores item locally with a fresh local id and sync key, then inserts it
// remotely. On success the local id is replaced by the remote one. Duplicate
// rejections roll back the local write and are returned; other failures keep
// the record pending and queue it.
func (m *Manager[T, P]) Add(ctx context.Context, item T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.local.GetAll(ctx)
	md := meta[T, P](&item)
	md.ID = m.nextLocalID(items)
	if md.SyncKey == "" {
		md.SyncKey = uuid.NewString()
	}
	md.SyncState = models.SyncPending
	localID := md.ID
	items = append(items, item)
	m.save(ctx, items)

	remoteID, err := m.remote.Insert(ctx, &item)
	if err == nil {
		md.ID = remoteID
		md.SyncState = models.SyncSynced
		items[len(items)-1] = item
		m.save(ctx, items)
		return item, nil
	}
	if remote.Permanent(err) {
		m.metrics.RemoteError(m.name, string(remote.CodeOf(err)))
		m.save(ctx, items[:len(items)-1])
		var zero T
		return zero, err
	}
	m.deferToOutbox(ctx, outbox.OpInsert, localID, item, err)
	return item, nil
}

// Update replaces the cached record with the same id, then updates the remote
// row when the record has one.
func (m *Manager[T, P]) Update(ctx context.Context, item T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.local.GetAll(ctx)
	md := meta[T, P](&item)
	i := m.indexOf(items, md.ID)
	if i < 0 {
		var zero T
		return zero, ErrNotFound
	}
	if md.SyncKey == "" {
		md.SyncKey = meta[T, P](&items[i]).SyncKey
	}
	md.SyncState = models.SyncPending
	items[i] = item
	m.save(ctx, items)

	if !md.HasRemoteID() {
		// the queued insert, or the next upload, carries the new values
		return item, nil
	}
	if err := m.remote.Update(ctx, &item); err != nil {
		m.deferToOutbox(ctx, outbox.OpUpdate, md.ID, item, err)
		return item, nil
	}
	md.SyncState = models.SyncSynced
	items[i] = item
	m.save(ctx, items)
	return item, nil
}

// Delete removes the record locally and remotely.
func (m *Manager[T, P]) Delete(ctx context.Context, id int64) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.local.GetAll(ctx)
	i := m.indexOf(items, id)
	if i < 0 {
		var zero T
		return zero, ErrNotFound
	}
	removed := items[i]
	items = append(items[:i], items[i+1:]...)
	m.save(ctx, items)

	if id > models.RemoteIDThreshold {
		if err := m.remote.Delete(ctx, id); err != nil {
			m.deferToOutbox(ctx, outbox.OpDelete, id, nil, err)
		}
	}
	return removed, nil
}

// Modify applies fn to the cached record with id and saves it locally only.
func (m *Manager[T, P]) Modify(ctx context.Context, id int64, fn func(P) error) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.local.GetAll(ctx)
	i := m.indexOf(items, id)
	if i < 0 {
		var zero T
		return zero, ErrNotFound
	}
	if err := fn(P(&items[i])); err != nil {
		var zero T
		return zero, err
	}
	m.save(ctx, items)
	return items[i], nil
}

// Defer queues op for id on the outbox after an inline remote failure.
func (m *Manager[T, P]) Defer(ctx context.Context, op outbox.Op, id int64, payload any, cause error) {
	m.deferToOutbox(ctx, op, id, payload, cause)
}

// Apply replays an outbox mutation against the remote store.
func (m *Manager[T, P]) Apply(ctx context.Context, mut *outbox.Mutation) error {
	switch mut.Op {
	case outbox.OpInsert:
		return m.applyInsert(ctx, mut.RecordID)
	case outbox.OpUpdate:
		item, err := m.GetByID(ctx, mut.RecordID)
		if errors.Is(err, ErrNotFound) {
			if len(mut.Payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(mut.Payload, &item); err != nil {
				return fmt.Errorf("decode %s payload: %w", m.name, err)
			}
		}
		if err := m.remote.Update(ctx, &item); err != nil {
			return err
		}
		m.markSynced(ctx, mut.RecordID)
		return nil
	case outbox.OpDelete:
		return m.remote.Delete(ctx, mut.RecordID)
	case outbox.OpStatus:
		if mut.RecordID <= models.RemoteIDThreshold {
			return nil // the pending insert carries the status
		}
		su, ok := m.remote.(remote.StatusUpdater)
		if !ok {
			return fmt.Errorf("%s does not support status updates", m.name)
		}
		var p outbox.StatusPayload
		if err := json.Unmarshal(mut.Payload, &p); err != nil {
			return fmt.Errorf("decode status payload: %w", err)
		}
		if _, err := su.UpdateStatus(ctx, mut.RecordID, p.Status, p.Notes); err != nil {
			return err
		}
		m.markSynced(ctx, mut.RecordID)
		return nil
	}
	return fmt.Errorf("unknown outbox op %q", mut.Op)
}

// applyInsert pushes the current cached version of a local record.
// A record deleted locally in the meantime is dropped; one whose duplicate
// key already exists remotely is replaced by the remote row.
func (m *Manager[T, P]) applyInsert(ctx context.Context, localID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.local.GetAll(ctx)
	i := m.indexOf(items, localID)
	if i < 0 {
		m.logger.Info("queued insert dropped, record no longer cached", zap.Int64("id", localID))
		return nil
	}
	md := meta[T, P](&items[i])
	if md.HasRemoteID() || md.SyncState == models.SyncSynced {
		return nil
	}
	if m.key != nil {
		existing, err := m.remote.GetAll(ctx)
		if err != nil {
			return err
		}
		if row, ok := m.match(m.keyIndex(existing), &items[i]); ok {
			m.logger.Info("queued insert matches a remote row, adopting it",
				zap.Int64("id", localID), zap.Int64("remote_id", meta[T, P](&row).ID))
			items[i] = row
			m.save(ctx, dedupe[T, P](items))
			return nil
		}
	}
	id, inserted, err := m.remote.InsertIdempotent(ctx, &items[i])
	if err != nil {
		return err
	}
	if inserted {
		md.ID = id
	}
	md.SyncState = models.SyncSynced
	m.save(ctx, items)
	return nil
}

func (m *Manager[T, P]) markSynced(ctx context.Context, id int64) {
	_, err := m.Modify(ctx, id, func(p P) error {
		p.GetMeta().SyncState = models.SyncSynced
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.Warn("mark synced failed", zap.Int64("id", id), zap.Error(err))
	}
}
