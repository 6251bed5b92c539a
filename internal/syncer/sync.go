package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/pkg/remote"
)

// DownloadStatus is the outcome of a download.
type DownloadStatus string

const (
	DownloadSynced    DownloadStatus = "synced"
	DownloadNotSynced DownloadStatus = "not_synced"
)

// DownloadResult reports a download run.
type DownloadResult struct {
	Entity  string         `json:"entity"`
	Status  DownloadStatus `json:"status"`
	Count   int            `json:"count"`
	Kept    int            `json:"kept_local"`
	Message string         `json:"message,omitempty"`
}

// UploadSummary reports an upload run.
type UploadSummary struct {
	Entity  string `json:"entity"`
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
}

// Syncer is the sync surface shared by every entity manager.
type Syncer interface {
	Name() string
	Download(ctx context.Context) (DownloadResult, error)
	Upload(ctx context.Context) (UploadSummary, error)
	Apply(ctx context.Context, m *outbox.Mutation) error
}

// Download replaces the cache with the remote rows, marked synced. Local-only
// records still pending (never inserted remotely) are kept after the remote
// rows so queued inserts and the next upload can deliver them, unless their
// sync key or duplicate key matches a remote row. A missing remote table
// leaves the cache untouched and reports not_synced.
func (m *Manager[T, P]) Download(ctx context.Context) (DownloadResult, error) {
	res := DownloadResult{Entity: m.name}
	data, err := m.remote.GetAll(ctx)
	if remote.IsCode(err, remote.CodeTableNotFound) {
		m.metrics.SyncRun(m.name, "download", "not_synced")
		m.logger.Info("remote table missing, cache left as is")
		res.Status = DownloadNotSynced
		res.Message = err.Error()
		return res, nil
	}
	if err != nil {
		m.metrics.SyncRun(m.name, "download", "error")
		m.metrics.RemoteError(m.name, string(remote.CodeOf(err)))
		return res, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	remoteKeys := make(map[string]bool, len(data))
	for i := range data {
		md := meta[T, P](&data[i])
		md.SyncState = models.SyncSynced
		if md.SyncKey != "" {
			remoteKeys[md.SyncKey] = true
		}
	}
	dups := m.keyIndex(data)
	merged := data
	for _, item := range m.local.GetAll(ctx) {
		md := meta[T, P](&item)
		if md.HasRemoteID() || md.SyncState == models.SyncSynced || remoteKeys[md.SyncKey] {
			continue
		}
		if _, ok := m.match(dups, &item); ok {
			continue
		}
		merged = append(merged, item)
		res.Kept++
	}
	if err := m.local.Save(ctx, merged); err != nil {
		m.metrics.SyncRun(m.name, "download", "error")
		return res, err
	}

	m.metrics.SyncRun(m.name, "download", "ok")
	m.logger.Info("download complete", zap.Int("count", len(data)), zap.Int("kept_local", res.Kept))
	res.Status = DownloadSynced
	res.Count = len(data)
	return res, nil
}

// Upload inserts local-only records remotely. Records already synced or with
// a remote-assigned id are skipped. A record whose duplicate key exists
// remotely is skipped too and replaced in the cache by the remote row.
// Per-record failures are counted and do not stop the batch.
func (m *Manager[T, P]) Upload(ctx context.Context) (UploadSummary, error) {
	sum := UploadSummary{Entity: m.name}
	existing, err := m.remote.GetAll(ctx)
	if err != nil {
		m.metrics.SyncRun(m.name, "upload", "error")
		m.metrics.RemoteError(m.name, string(remote.CodeOf(err)))
		return sum, err
	}
	seen := m.keyIndex(existing)

	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.local.GetAll(ctx)
	changed := false
	for i := range items {
		md := meta[T, P](&items[i])
		if md.SyncState == models.SyncSynced || md.HasRemoteID() {
			sum.Skipped++
			continue
		}
		if row, ok := m.match(seen, &items[i]); ok {
			items[i] = row
			changed = true
			sum.Skipped++
			continue
		}
		id, inserted, err := m.remote.InsertIdempotent(ctx, &items[i])
		if err != nil {
			sum.Errors++
			md.SyncState = models.SyncFailed
			changed = true
			m.metrics.RemoteError(m.name, string(remote.CodeOf(err)))
			m.logger.Warn("upload record failed", zap.Int64("id", md.ID), zap.Error(err))
			continue
		}
		if !inserted {
			sum.Skipped++
			continue
		}
		md.ID = id
		md.SyncState = models.SyncSynced
		changed = true
		sum.Synced++
		if m.key != nil {
			if k := m.key(&items[i]); k != "" {
				seen[k] = items[i]
			}
		}
	}
	if changed {
		m.save(ctx, dedupe[T, P](items))
	}

	m.metrics.SyncRun(m.name, "upload", "ok")
	m.metrics.SyncRecords(m.name, "synced", sum.Synced)
	m.metrics.SyncRecords(m.name, "skipped", sum.Skipped)
	m.metrics.SyncRecords(m.name, "error", sum.Errors)
	m.logger.Info("upload complete", zap.Int("synced", sum.Synced), zap.Int("skipped", sum.Skipped), zap.Int("errors", sum.Errors))
	return sum, nil
}

// keyIndex maps the duplicate key of each remote row to the row, marked synced.
func (m *Manager[T, P]) keyIndex(rows []T) map[string]T {
	idx := make(map[string]T, len(rows))
	if m.key == nil {
		return idx
	}
	for i := range rows {
		if k := m.key(&rows[i]); k != "" {
			row := rows[i]
			meta[T, P](&row).SyncState = models.SyncSynced
			idx[k] = row
		}
	}
	return idx
}

// match returns the remote row sharing item's duplicate key.
func (m *Manager[T, P]) match(idx map[string]T, item *T) (T, bool) {
	var zero T
	if m.key == nil {
		return zero, false
	}
	k := m.key(item)
	if k == "" {
		return zero, false
	}
	row, ok := idx[k]
	return row, ok
}

// dedupe keeps the first record for each id.
func dedupe[T any, P models.Record[T]](items []T) []T {
	seen := make(map[int64]bool, len(items))
	out := items[:0]
	for _, item := range items {
		id := meta[T, P](&item).ID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, item)
	}
	return out
}
