// Package remotetest provides an in-memory remote.Table for tests.
package remotetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/remote"
)

// ReviewedAt is the timestamp returned by UpdateStatus.
var ReviewedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

// Table is an in-memory remote.Table and remote.StatusUpdater keyed by id.
// Ids are assigned from 1001 like the real identity columns. Set the *Err
// fields to make the matching calls fail.
type Table[T any, P models.Record[T]] struct {
	mu      sync.Mutex
	name    string
	Rows    map[int64]T
	NextID  int64
	Inserts int

	GetAllErr error
	InsertErr error
	UpdateErr error
	DeleteErr error
	StatusErr error
	// Statuses records UpdateStatus calls as {status, notes}.
	Statuses map[int64][2]string
}

// NewTable creates an empty table.
func NewTable[T any, P models.Record[T]](name string) *Table[T, P] {
	return &Table[T, P]{name: name, Rows: make(map[int64]T), NextID: 1001, Statuses: make(map[int64][2]string)}
}

func (f *Table[T, P]) Name() string { return f.name }

func (f *Table[T, P]) GetAll(context.Context) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetAllErr != nil {
		return []T{}, f.GetAllErr
	}
	ids := make([]int64, 0, len(f.Rows))
	for id := range f.Rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.Rows[id])
	}
	return out, nil
}

func (f *Table[T, P]) GetByID(_ context.Context, id int64) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.Rows[id]; ok {
		return r, nil
	}
	var zero T
	return zero, remote.ErrNotFound
}

func (f *Table[T, P]) store(item *T) int64 {
	id := f.NextID
	f.NextID++
	row := *item
	md := P(&row).GetMeta()
	md.ID = id
	md.SyncState = ""
	f.Rows[id] = row
	f.Inserts++
	return id
}

func (f *Table[T, P]) Insert(_ context.Context, item *T) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return 0, f.InsertErr
	}
	return f.store(item), nil
}

func (f *Table[T, P]) InsertIdempotent(_ context.Context, item *T) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return 0, false, f.InsertErr
	}
	key := P(item).GetMeta().SyncKey
	for _, r := range f.Rows {
		if key != "" && P(&r).GetMeta().SyncKey == key {
			return 0, false, nil
		}
	}
	return f.store(item), true, nil
}

func (f *Table[T, P]) Update(_ context.Context, item *T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	id := P(item).GetMeta().ID
	if _, ok := f.Rows[id]; !ok {
		return remote.ErrNotFound
	}
	f.Rows[id] = *item
	return nil
}

func (f *Table[T, P]) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.Rows, id)
	return nil
}

func (f *Table[T, P]) UpdateStatus(_ context.Context, id int64, status, notes string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return time.Time{}, f.StatusErr
	}
	if _, ok := f.Rows[id]; !ok {
		return time.Time{}, remote.ErrNotFound
	}
	f.Statuses[id] = [2]string{status, notes}
	return ReviewedAt, nil
}
