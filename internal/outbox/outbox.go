package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/telemetry"
	"github.com/assoc-site/backend/pkg/remote"
)

// Outbox is the write side used by entity managers.
type Outbox struct {
	store   Store
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// New creates an outbox over store.
func New(store Store, metrics *telemetry.Metrics, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{store: store, metrics: metrics, logger: logger}
}

// Store returns the underlying store.
func (o *Outbox) Store() Store { return o.store }

// Enqueue queues a mutation for replay. cause is the inline failure that
// triggered it and is kept as LastError.
func (o *Outbox) Enqueue(ctx context.Context, entity string, op Op, recordID int64, payload any, cause error) error {
	m, err := NewMutation(entity, op, recordID, payload)
	if err != nil {
		return err
	}
	if cause != nil {
		m.LastError = cause.Error()
	}
	if err := o.store.Enqueue(ctx, m); err != nil {
		o.logger.Error("outbox enqueue failed", zap.String("entity", entity), zap.String("op", string(op)), zap.Int64("record_id", recordID), zap.Error(err))
		return err
	}
	o.metrics.OutboxEnqueued(entity, string(op))
	o.logger.Info("mutation queued for replay",
		zap.String("mutation_id", m.ID),
		zap.String("entity", entity),
		zap.String("op", string(op)),
		zap.Int64("record_id", recordID),
		zap.String("code", string(remote.CodeOf(cause))),
	)
	return nil
}

// Stats reports queue sizes.
func (o *Outbox) Stats(ctx context.Context) (Stats, error) { return o.store.Stats(ctx) }

// Dead lists dead-lettered mutations.
func (o *Outbox) Dead(ctx context.Context, limit int64) ([]Mutation, error) {
	return o.store.Dead(ctx, limit)
}

// Applier replays mutations for one entity against the remote store.
type Applier interface {
	Apply(ctx context.Context, m *Mutation) error
}

// DrainResult summarises one DrainOnce pass.
type DrainResult struct {
	Applied int `json:"applied"`
	Retried int `json:"retried"`
	Dead    int `json:"dead"`
}

// Drainer pops mutations and dispatches them by entity.
type Drainer struct {
	store      Store
	appliers   map[string]Applier
	maxRetries int
	backoff    time.Duration
	poll       time.Duration
	metrics    *telemetry.Metrics
	logger     *zap.Logger
}

// DrainerConfig tunes retries and polling.
type DrainerConfig struct {
	MaxRetries int
	Backoff    time.Duration
	Poll       time.Duration
}

// NewDrainer creates a drainer. Zero config values take the defaults.
func NewDrainer(store Store, cfg DrainerConfig, metrics *telemetry.Metrics, logger *zap.Logger) *Drainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 5 * time.Second
	}
	return &Drainer{
		store:      store,
		appliers:   make(map[string]Applier),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		poll:       cfg.Poll,
		metrics:    metrics,
		logger:     logger,
	}
}

// Register routes mutations for entity to a.
func (d *Drainer) Register(entity string, a Applier) {
	d.appliers[entity] = a
}

type outcome int

const (
	applied outcome = iota
	retried
	buried
)

func (d *Drainer) process(ctx context.Context, m *Mutation) outcome {
	a, ok := d.appliers[m.Entity]
	if !ok {
		m.LastError = "no applier registered for " + m.Entity
		d.logger.Error("outbox mutation has no applier", zap.String("mutation_id", m.ID), zap.String("entity", m.Entity))
		d.bury(ctx, m)
		return buried
	}

	err := a.Apply(ctx, m)
	if err == nil {
		if err := d.store.MarkStatus(ctx, m.ID, StateDone); err != nil {
			d.logger.Warn("outbox mark done failed", zap.String("mutation_id", m.ID), zap.Error(err))
		}
		d.metrics.OutboxProcessed(m.Entity, "applied")
		d.logger.Info("outbox mutation applied", zap.String("mutation_id", m.ID), zap.String("entity", m.Entity), zap.String("op", string(m.Op)))
		return applied
	}

	m.LastError = err.Error()
	d.metrics.RemoteError(m.Entity, string(remote.CodeOf(err)))
	if remote.Permanent(err) {
		d.logger.Warn("outbox mutation rejected", zap.String("mutation_id", m.ID), zap.String("entity", m.Entity), zap.Error(err))
		d.bury(ctx, m)
		return buried
	}

	dead, rerr := d.store.Retry(ctx, m, d.maxRetries)
	if rerr != nil {
		d.logger.Error("outbox retry enqueue failed", zap.String("mutation_id", m.ID), zap.Error(rerr))
	}
	if dead {
		d.metrics.OutboxProcessed(m.Entity, "dead")
		d.logger.Warn("outbox mutation moved to dead-letter", zap.String("mutation_id", m.ID), zap.Int("attempt", m.Attempt), zap.Error(err))
		return buried
	}
	d.metrics.OutboxProcessed(m.Entity, "retried")
	d.logger.Info("outbox mutation retried", zap.String("mutation_id", m.ID), zap.Int("attempt", m.Attempt), zap.Error(err))
	return retried
}

func (d *Drainer) bury(ctx context.Context, m *Mutation) {
	if err := d.store.Bury(ctx, m); err != nil {
		d.logger.Error("outbox bury failed", zap.String("mutation_id", m.ID), zap.Error(err))
	}
	d.metrics.OutboxProcessed(m.Entity, "dead")
}

// DrainOnce processes the mutations queued at call time without waiting.
// Retried mutations go back on the queue for the next pass.
func (d *Drainer) DrainOnce(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return res, err
	}
	for i := int64(0); i < stats.Pending; i++ {
		m, err := d.store.Dequeue(ctx, 0)
		if err != nil {
			return res, err
		}
		if m == nil {
			break
		}
		switch d.process(ctx, m) {
		case applied:
			res.Applied++
		case retried:
			res.Retried++
		case buried:
			res.Dead++
		}
	}
	return res, nil
}

// Run drains until ctx is done, sleeping for the backoff after a failure.
func (d *Drainer) Run(ctx context.Context) {
	d.logger.Info("outbox drainer started", zap.Int("max_retries", d.maxRetries), zap.Duration("backoff", d.backoff))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox drainer stopping")
			return
		default:
		}

		m, err := d.store.Dequeue(ctx, d.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Warn("outbox dequeue error", zap.Error(err))
			d.sleep(ctx)
			continue
		}
		if m == nil {
			continue
		}
		if d.process(ctx, m) == retried {
			d.sleep(ctx)
		}
	}
}

func (d *Drainer) sleep(ctx context.Context) {
	t := time.NewTimer(d.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
