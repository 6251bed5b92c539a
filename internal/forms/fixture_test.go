package forms

import (
	"context"
	"io"
	"sync"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/pkg/cache"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/remote/remotetest"
)

var unavailable = &remote.Error{Code: remote.CodeUnknown, Message: "connection refused"}

type fakeAccounts struct {
	mu    sync.Mutex
	calls int
	users map[string]int64
	err   error
}

func (f *fakeAccounts) Provision(_ context.Context, email, hash, name string) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	if f.users == nil {
		f.users = map[string]int64{}
	}
	if id, ok := f.users[email]; ok {
		return &models.User{ID: id, Email: email}, false, nil
	}
	id := int64(len(f.users) + 1)
	f.users[email] = id
	return &models.User{ID: id, Email: email, Password: hash, FullName: name, Role: models.RoleMember}, true, nil
}

type fakeFiles struct {
	uploaded []string
	deleted  []string
}

func (f *fakeFiles) UploadFile(_ context.Context, domain, folder, base, filename, contentType string, body io.Reader, size int64) (*models.FileRef, error) {
	_, _ = io.ReadAll(body)
	key := folder + "/" + base + "_" + filename
	f.uploaded = append(f.uploaded, domain+"/"+key)
	return &models.FileRef{Name: filename, Size: size, Type: contentType, StoragePath: key, URL: "https://cdn/" + key, Uploaded: true}, nil
}

func (f *fakeFiles) DeleteObject(_ context.Context, domain, key string) error {
	f.deleted = append(f.deleted, domain+"/"+key)
	return nil
}

type fixture struct {
	outbox *outbox.Outbox

	formsTable *remotetest.Table[models.MembershipForm, *models.MembershipForm]
	membersTbl *remotetest.Table[models.Member, *models.Member]
	contactTbl *remotetest.Table[models.ContactForm, *models.ContactForm]
	regsTbl    *remotetest.Table[models.EventRegistration, *models.EventRegistration]
	eventsTbl  *remotetest.Table[models.Event, *models.Event]

	members     *syncer.Manager[models.Member, *models.Member]
	events      *syncer.Manager[models.Event, *models.Event]
	membership  *Membership
	submissions *Submissions
	accounts    *fakeAccounts
	files       *fakeFiles
}

func newManager[T any, P models.Record[T]](kv cache.KV, table remote.Table[T], ob syncer.Enqueuer) *syncer.Manager[T, P] {
	return syncer.New[T, P](syncer.Options[T]{
		Local:  cache.NewCollection[T](kv, table.Name(), nil, nil),
		Remote: table,
		Outbox: ob,
	})
}

func newFixture() *fixture {
	kv := cache.NewMemoryKV()
	f := &fixture{
		outbox:     outbox.New(outbox.NewMemoryStore(), nil, nil),
		formsTable: remotetest.NewTable[models.MembershipForm, *models.MembershipForm](models.EntityMembershipForms),
		membersTbl: remotetest.NewTable[models.Member, *models.Member](models.EntityMembers),
		contactTbl: remotetest.NewTable[models.ContactForm, *models.ContactForm](models.EntityContactForms),
		regsTbl:    remotetest.NewTable[models.EventRegistration, *models.EventRegistration](models.EntityRegistrations),
		eventsTbl:  remotetest.NewTable[models.Event, *models.Event](models.EntityEvents),
		accounts:   &fakeAccounts{},
		files:      &fakeFiles{},
	}
	f.members = newManager[models.Member, *models.Member](kv, f.membersTbl, f.outbox)
	f.events = newManager[models.Event, *models.Event](kv, f.eventsTbl, f.outbox)

	formsMgr := newManager[models.MembershipForm, *models.MembershipForm](kv, f.formsTable, f.outbox)
	f.membership = NewMembership(NewWorkflow(formsMgr, nil), f.files, f.accounts, f.members, nil)

	reservations := remotetest.NewTable[models.Reservation, *models.Reservation](models.EntityReservations)
	f.submissions = NewSubmissions(
		NewWorkflow(newManager[models.ContactForm, *models.ContactForm](kv, f.contactTbl, f.outbox), nil),
		NewWorkflow(newManager[models.Reservation, *models.Reservation](kv, reservations, f.outbox), nil),
		NewWorkflow(newManager[models.EventRegistration, *models.EventRegistration](kv, f.regsTbl, f.outbox), nil),
		f.events,
	)
	return f
}

func application(email string) MembershipInput {
	return MembershipInput{
		Username:  "Dana Haddad",
		Email:     email,
		Password:  "s3cret-pass",
		Specialty: []string{"speech therapy"},
	}
}
