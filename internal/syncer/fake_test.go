package syncer

import (
	"context"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/pkg/cache"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/remote/remotetest"
)

type recordingOutbox struct {
	calls []*outbox.Mutation
}

func (r *recordingOutbox) Enqueue(_ context.Context, entity string, op outbox.Op, id int64, payload any, cause error) error {
	m, err := outbox.NewMutation(entity, op, id, payload)
	if err != nil {
		return err
	}
	if cause != nil {
		m.LastError = cause.Error()
	}
	r.calls = append(r.calls, m)
	return nil
}

type memberFixture struct {
	mgr    *Manager[models.Member, *models.Member]
	table  *remotetest.Table[models.Member, *models.Member]
	local  *cache.Collection[models.Member]
	outbox *recordingOutbox
	events int
}

func newMemberFixture() *memberFixture {
	f := &memberFixture{
		table:  remotetest.NewTable[models.Member, *models.Member](models.EntityMembers),
		outbox: &recordingOutbox{},
	}
	f.local = cache.NewCollection[models.Member](cache.NewMemoryKV(), "members", func([]models.Member) { f.events++ }, nil)
	f.mgr = New[models.Member](Options[models.Member]{
		Local:    f.local,
		Remote:   f.table,
		DedupKey: MemberKey,
		Outbox:   f.outbox,
	})
	return f
}

var unavailable = &remote.Error{Code: remote.CodeUnknown, Message: "connection refused"}
