// Package forms implements public form submission and the admin review
// workflow for membership applications, contact messages, reservations and
// event registrations.
package forms

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/pkg/remote"
)

var (
	ErrAlreadyReviewed = errors.New("form already reviewed")
	ErrInvalidStatus   = errors.New("status must be approved or rejected")
)

// Workflow drives the pending -> approved | rejected transition of one form type.
type Workflow[T any, P models.Reviewable[T]] struct {
	mgr    *syncer.Manager[T, P]
	now    func() time.Time
	logger *zap.Logger
}

// NewWorkflow creates a workflow over the form's entity manager.
func NewWorkflow[T any, P models.Reviewable[T]](mgr *syncer.Manager[T, P], logger *zap.Logger) *Workflow[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow[T, P]{mgr: mgr, now: time.Now, logger: logger.With(zap.String("form", mgr.Name()))}
}

// Name returns the form entity name.
func (w *Workflow[T, P]) Name() string { return w.mgr.Name() }

// Manager returns the underlying entity manager.
func (w *Workflow[T, P]) Manager() *syncer.Manager[T, P] { return w.mgr }

// List returns the cached forms.
func (w *Workflow[T, P]) List(ctx context.Context) []T { return w.mgr.GetAll(ctx) }

// Get returns the cached form with id.
func (w *Workflow[T, P]) Get(ctx context.Context, id int64) (T, error) { return w.mgr.GetByID(ctx, id) }

// Submit stores a new form as pending with submitted_at set to now.
func (w *Workflow[T, P]) Submit(ctx context.Context, item T) (T, error) {
	r := P(&item).GetReview()
	r.Status = models.StatusPending
	r.SubmittedAt = w.now().UTC()
	r.ReviewedAt = nil
	r.ReviewNotes = ""
	return w.mgr.Add(ctx, item)
}

// Delete removes the form locally and remotely.
func (w *Workflow[T, P]) Delete(ctx context.Context, id int64) (T, error) {
	return w.mgr.Delete(ctx, id)
}

func pending(r *models.Review) bool {
	return r.Status == models.StatusPending || r.Status == ""
}

// UpdateStatus approves or rejects a pending form, recording notes and
// reviewed_at. The remote row is updated first; if that fails the change is
// applied to the cache only and queued. Reviewed forms cannot change again.
func (w *Workflow[T, P]) UpdateStatus(ctx context.Context, id int64, status models.Status, notes string) (T, error) {
	var zero T
	if status != models.StatusApproved && status != models.StatusRejected {
		return zero, ErrInvalidStatus
	}
	cur, err := w.mgr.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if !pending(P(&cur).GetReview()) {
		return zero, ErrAlreadyReviewed
	}

	reviewedAt := w.now().UTC()
	var cause error
	remoteDone := false
	if id > models.RemoteIDThreshold {
		su, ok := w.mgr.Remote().(remote.StatusUpdater)
		if !ok {
			cause = errors.New("remote table does not support status updates")
		} else if at, err := su.UpdateStatus(ctx, id, string(status), notes); err != nil {
			cause = err
		} else {
			reviewedAt = at.UTC()
			remoteDone = true
		}
	}

	updated, err := w.mgr.Modify(ctx, id, func(p P) error {
		r := p.GetReview()
		if !pending(r) {
			return ErrAlreadyReviewed
		}
		r.Status = status
		r.ReviewNotes = notes
		r.ReviewedAt = &reviewedAt
		if remoteDone {
			p.GetMeta().SyncState = models.SyncSynced
		} else {
			p.GetMeta().SyncState = models.SyncPending
		}
		return nil
	})
	if err != nil {
		return zero, err
	}
	if cause != nil {
		w.logger.Warn("status update kept locally", zap.Int64("id", id), zap.String("status", string(status)), zap.Error(cause))
		w.mgr.Defer(ctx, outbox.OpStatus, id, outbox.StatusPayload{Status: string(status), Notes: notes}, cause)
	}
	return updated, nil
}
