// Package telemetry holds the Prometheus metrics for sync and outbox activity.
//
// Metrics are registered on the Registerer passed to NewMetrics and exposed by
// cmd/server at GET /metrics. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the application counters.
type Metrics struct {
	// SyncRunsTotal counts download/upload runs by {entity, direction, result}.
	SyncRunsTotal *prometheus.CounterVec
	// SyncRecordsTotal counts per-record upload outcomes by {entity, outcome}.
	SyncRecordsTotal *prometheus.CounterVec
	// RemoteErrorsTotal counts classified remote failures by {entity, code}.
	RemoteErrorsTotal *prometheus.CounterVec
	// OutboxEnqueuedTotal counts queued mutations by {entity, op}.
	OutboxEnqueuedTotal *prometheus.CounterVec
	// OutboxProcessedTotal counts drained mutations by {entity, result}.
	OutboxProcessedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SyncRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Sync runs by entity, direction (download|upload) and result (ok|not_synced|error).",
		}, []string{"entity", "direction", "result"}),
		SyncRecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Records handled by upload, by entity and outcome (synced|skipped|error).",
		}, []string{"entity", "outcome"}),
		RemoteErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_errors_total",
			Help: "Remote store failures by entity and error code.",
		}, []string{"entity", "code"}),
		OutboxEnqueuedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_enqueued_total",
			Help: "Mutations queued for replay, by entity and operation.",
		}, []string{"entity", "op"}),
		OutboxProcessedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_processed_total",
			Help: "Outbox mutations drained, by entity and result (applied|retried|dead).",
		}, []string{"entity", "result"}),
	}
}

func (m *Metrics) SyncRun(entity, direction, result string) {
	if m == nil {
		return
	}
	m.SyncRunsTotal.WithLabelValues(entity, direction, result).Inc()
}

func (m *Metrics) SyncRecords(entity, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SyncRecordsTotal.WithLabelValues(entity, outcome).Add(float64(n))
}

func (m *Metrics) RemoteError(entity, code string) {
	if m == nil {
		return
	}
	m.RemoteErrorsTotal.WithLabelValues(entity, code).Inc()
}

func (m *Metrics) OutboxEnqueued(entity, op string) {
	if m == nil {
		return
	}
	m.OutboxEnqueuedTotal.WithLabelValues(entity, op).Inc()
}

func (m *Metrics) OutboxProcessed(entity, result string) {
	if m == nil {
		return
	}
	m.OutboxProcessedTotal.WithLabelValues(entity, result).Inc()
}
