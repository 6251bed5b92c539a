package forms

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/utils"
)

func TestMembership_SubmitHashesPasswordAndUploads(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	form, err := f.membership.Submit(ctx, application("a@b.com"), map[string]Upload{
		SlotCV:           {Filename: "cv.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")},
		SlotProfileImage: {Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, form.Status)
	assert.NotEqual(t, "s3cret-pass", form.PasswordHash)
	assert.True(t, utils.CheckPassword("s3cret-pass", form.PasswordHash))
	assert.True(t, form.Files.CV.Uploaded)
	assert.True(t, form.Files.ProfileImage.Uploaded)
	assert.False(t, form.Files.IDImage.Uploaded)
	assert.Equal(t, []string{"membership_forms/profile_image/Dana Haddad_me.png", "membership_forms/cv/Dana Haddad_cv.pdf"}, f.files.uploaded)
}

func TestMembership_DuplicateEmailWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.membership.Submit(ctx, application("a@b.com"), nil)
	require.NoError(t, err)

	_, err = f.membership.Submit(ctx, application("A@B.com"), nil)
	require.Error(t, err)
	assert.Equal(t, remote.CodeDuplicateEmail, remote.CodeOf(err))
	assert.Len(t, f.membership.List(ctx), 1)

	_, err = f.membership.Reject(ctx, first.ID, "incomplete")
	require.NoError(t, err)
	_, err = f.membership.Submit(ctx, application("a@b.com"), nil)
	assert.NoError(t, err, "a new application is allowed once the first is reviewed")
}

func TestMembership_RemoteDuplicateRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.formsTable.InsertErr = &remote.Error{Code: remote.CodeDuplicateEmail, Message: "duplicate key"}

	_, err := f.membership.Submit(ctx, application("a@b.com"), map[string]Upload{
		SlotCV: {Filename: "cv.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")},
	})
	assert.Equal(t, remote.CodeDuplicateEmail, remote.CodeOf(err))
	assert.Empty(t, f.membership.List(ctx))
	assert.Equal(t, []string{"membership_forms/cv/Dana Haddad_cv.pdf"}, f.files.deleted)
}

func TestMembership_Validation(t *testing.T) {
	f := newFixture()
	in := application("not-an-email")
	_, err := f.membership.Submit(context.Background(), in, nil)
	assert.Error(t, err)

	in = application("a@b.com")
	in.Specialty = nil
	_, err = f.membership.Submit(context.Background(), in, nil)
	assert.Error(t, err)
}

func TestMembership_ApproveOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	form, err := f.membership.Submit(ctx, application("a@b.com"), nil)
	require.NoError(t, err)

	res, err := f.membership.Approve(ctx, form.ID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.Form.Status)
	assert.Empty(t, res.Form.PasswordHash)
	assert.True(t, res.AccountCreated)
	require.NotNil(t, res.Member)
	assert.Equal(t, "a@b.com", res.Member.Email)
	assert.True(t, res.Member.IsActive)
	assert.Len(t, f.members.GetAll(ctx), 1)

	_, err = f.membership.Approve(ctx, form.ID, "again")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 1, f.accounts.calls)
	assert.Len(t, f.members.GetAll(ctx), 1)
}

func TestMembership_ApproveRetriesAfterProvisioningFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	form, err := f.membership.Submit(ctx, application("a@b.com"), nil)
	require.NoError(t, err)

	f.accounts.err = unavailable
	_, err = f.membership.Approve(ctx, form.ID, "welcome")
	require.Error(t, err)
	got, err := f.membership.Get(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Empty(t, f.members.GetAll(ctx))
	_, reviewed := f.formsTable.Statuses[form.ID]
	assert.False(t, reviewed)

	f.accounts.err = nil
	res, err := f.membership.Approve(ctx, form.ID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.Form.Status)
	assert.True(t, res.AccountCreated)
	require.NotNil(t, res.Member)
	assert.Len(t, f.members.GetAll(ctx), 1)
	assert.Equal(t, [2]string{"approved", "welcome"}, f.formsTable.Statuses[form.ID])
}

func TestMembership_ApproveReusesExistingMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	form, err := f.membership.Submit(ctx, application("a@b.com"), nil)
	require.NoError(t, err)
	_, err = f.members.Add(ctx, models.Member{Name: "Dana", Email: "A@B.com"})
	require.NoError(t, err)

	res, err := f.membership.Approve(ctx, form.ID, "")
	require.NoError(t, err)
	require.NotNil(t, res.Member)
	assert.Equal(t, "A@B.com", res.Member.Email)
	assert.Len(t, f.members.GetAll(ctx), 1)
}

func TestMembership_DeleteRemovesFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	form, err := f.membership.Submit(ctx, application("a@b.com"), map[string]Upload{
		SlotIDImage: {Filename: "id.jpg", ContentType: "image/jpeg", Size: 2, Body: strings.NewReader("id")},
	})
	require.NoError(t, err)

	_, err = f.membership.Delete(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"membership_forms/id_image/Dana Haddad_id.jpg"}, f.files.deleted)
	assert.Empty(t, f.formsTable.Rows)
}

func TestSubmissions_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	up, err := f.events.Add(ctx, models.Event{Title: "Conference", Bucket: models.BucketUpcoming})
	require.NoError(t, err)
	past, err := f.events.Add(ctx, models.Event{Title: "Old", Bucket: models.BucketPast})
	require.NoError(t, err)

	reg := models.EventRegistration{FullName: "Omar", Email: "omar@example.com", Phone: "555", SelectedTracks: []string{"A"}}
	saved, err := f.submissions.Register(ctx, up.ID, reg)
	require.NoError(t, err)
	assert.Equal(t, up.ID, saved.EventID)

	_, err = f.submissions.Register(ctx, up.ID, reg)
	assert.Equal(t, remote.CodeDuplicateEmail, remote.CodeOf(err))

	_, err = f.submissions.Register(ctx, past.ID, reg)
	assert.ErrorIs(t, err, ErrEventClosed)

	_, err = f.submissions.Register(ctx, 4242, reg)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	reg.SelectedTracks = nil
	_, err = f.submissions.Register(ctx, up.ID, reg)
	assert.Error(t, err)
}
