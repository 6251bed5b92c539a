package forms

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/storage"
	"github.com/assoc-site/backend/pkg/utils"
)

// File slots of a membership application.
const (
	SlotProfileImage = "profile_image"
	SlotIDImage      = "id_image"
	SlotCertificate  = "certificate"
	SlotCV           = "cv"
)

// Slots lists the accepted file fields in upload order.
var Slots = []string{SlotProfileImage, SlotIDImage, SlotCertificate, SlotCV}

// MembershipInput is the text part of a membership application.
type MembershipInput struct {
	Username     string   `form:"username" json:"username" binding:"required"`
	Email        string   `form:"email" json:"email" binding:"required,email"`
	Password     string   `form:"password" json:"password" binding:"required,min=8"`
	Specialty    []string `form:"specialty" json:"specialty" binding:"required,min=1,dive,required"`
	PreviousWork string   `form:"previous_work" json:"previous_work"`
}

// Upload is one file of a submission.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Provisioner creates login accounts for approved members.
type Provisioner interface {
	Provision(ctx context.Context, email, passwordHash, fullName string) (*models.User, bool, error)
}

// MemberCreator adds listed members.
type MemberCreator interface {
	GetAll(ctx context.Context) []models.Member
	Add(ctx context.Context, m models.Member) (models.Member, error)
}

// Approval is the result of approving a membership application.
type Approval struct {
	Form           models.MembershipForm `json:"form"`
	Member         *models.Member        `json:"member,omitempty"`
	UserID         int64                 `json:"user_id,omitempty"`
	AccountCreated bool                  `json:"account_created"`
}

// Membership handles membership applications.
type Membership struct {
	*Workflow[models.MembershipForm, *models.MembershipForm]
	files    storage.FileStore
	accounts Provisioner
	members  MemberCreator
	logger   *zap.Logger
}

// NewMembership creates the membership service. files may be nil, in which
// case applications with attachments are refused.
func NewMembership(wf *Workflow[models.MembershipForm, *models.MembershipForm], files storage.FileStore, accounts Provisioner, members MemberCreator, logger *zap.Logger) *Membership {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Membership{Workflow: wf, files: files, accounts: accounts, members: members, logger: logger}
}

func duplicateEmail(email string) error {
	return &remote.Error{
		Code:    remote.CodeDuplicateEmail,
		Message: fmt.Sprintf("an application for %s is already pending", email),
		Table:   models.EntityMembershipForms,
	}
}

// Submit validates and stores a new application. A second application for an
// email with one still pending fails with DUPLICATE_EMAIL.
func (s *Membership) Submit(ctx context.Context, in MembershipInput, uploads map[string]Upload) (models.MembershipForm, error) {
	var form models.MembershipForm
	in.Email = strings.TrimSpace(in.Email)
	if err := bindingValidate.Struct(in); err != nil {
		return form, err
	}
	for _, f := range s.List(ctx) {
		if strings.EqualFold(f.Email, in.Email) && pending(&f.Review) {
			return form, duplicateEmail(in.Email)
		}
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return form, err
	}

	form = models.MembershipForm{
		Username:     strings.TrimSpace(in.Username),
		Email:        in.Email,
		PasswordHash: hash,
		Specialty:    in.Specialty,
		PreviousWork: in.PreviousWork,
	}
	if err := s.upload(ctx, &form, uploads); err != nil {
		return models.MembershipForm{}, err
	}
	saved, err := s.Workflow.Submit(ctx, form)
	if err != nil {
		storage.DeleteFiles(ctx, s.files, storage.DomainMembershipForms, fileRefs(&form.Files)...)
		return models.MembershipForm{}, err
	}
	return saved, nil
}

func (s *Membership) upload(ctx context.Context, form *models.MembershipForm, uploads map[string]Upload) error {
	if len(uploads) == 0 {
		return nil
	}
	if s.files == nil {
		return storage.ErrUploadDisabled
	}
	for _, slot := range Slots {
		u, ok := uploads[slot]
		if !ok {
			continue
		}
		ref, err := s.files.UploadFile(ctx, storage.DomainMembershipForms, slot, form.Username, u.Filename, u.ContentType, u.Body, u.Size)
		if err != nil {
			storage.DeleteFiles(ctx, s.files, storage.DomainMembershipForms, fileRefs(&form.Files)...)
			return fmt.Errorf("%s: %w", slot, err)
		}
		*slotRef(&form.Files, slot) = *ref
	}
	return nil
}

func slotRef(f *models.MembershipFiles, slot string) *models.FileRef {
	switch slot {
	case SlotProfileImage:
		return &f.ProfileImage
	case SlotIDImage:
		return &f.IDImage
	case SlotCertificate:
		return &f.Certificate
	default:
		return &f.CV
	}
}

func fileRefs(f *models.MembershipFiles) []models.FileRef {
	out := make([]models.FileRef, 0, len(Slots))
	for _, slot := range Slots {
		if r := slotRef(f, slot); r.Present() {
			out = append(out, *r)
		}
	}
	return out
}

// Approve provisions the login account and the member listing, then marks
// the application approved. Both side effects are idempotent by email, so a
// failed approval leaves the form pending and can simply be retried.
// Approving a reviewed form fails with ErrAlreadyReviewed before any side
// effect runs.
func (s *Membership) Approve(ctx context.Context, id int64, notes string) (Approval, error) {
	form, err := s.Get(ctx, id)
	if err != nil {
		return Approval{}, err
	}
	if !pending(&form.Review) {
		return Approval{}, ErrAlreadyReviewed
	}
	var res Approval

	if s.accounts != nil {
		user, created, err := s.accounts.Provision(ctx, form.Email, form.PasswordHash, form.Username)
		if err != nil {
			return Approval{}, fmt.Errorf("create account: %w", err)
		}
		res.UserID, res.AccountCreated = user.ID, created
	}

	if s.members != nil {
		for _, m := range s.members.GetAll(ctx) {
			if strings.EqualFold(m.Email, form.Email) {
				existing := m
				res.Member = &existing
				break
			}
		}
		if res.Member == nil {
			member, err := s.members.Add(ctx, memberFromForm(&form))
			if err != nil {
				return res, fmt.Errorf("create member: %w", err)
			}
			res.Member = &member
		}
	}

	approved, err := s.UpdateStatus(ctx, id, models.StatusApproved, notes)
	if err != nil {
		return res, err
	}
	res.Form = approved.Redacted()
	s.logger.Info("membership approved", zap.Int64("form_id", id), zap.String("email", form.Email))
	return res, nil
}

func memberFromForm(f *models.MembershipForm) models.Member {
	return models.Member{
		Name:            f.Username,
		Email:           f.Email,
		Role:            "member",
		DisplayRole:     strings.Join(f.Specialty, ", "),
		FullDescription: f.PreviousWork,
		Certificates:    []string{},
		IsActive:        true,
		Image:           f.Files.ProfileImage,
	}
}

// Reject rejects the application.
func (s *Membership) Reject(ctx context.Context, id int64, notes string) (models.MembershipForm, error) {
	form, err := s.UpdateStatus(ctx, id, models.StatusRejected, notes)
	return form.Redacted(), err
}

// Delete removes the application and its uploaded files.
func (s *Membership) Delete(ctx context.Context, id int64) (models.MembershipForm, error) {
	form, err := s.Workflow.Delete(ctx, id)
	if err != nil {
		return form, err
	}
	storage.DeleteFiles(ctx, s.files, storage.DomainMembershipForms, fileRefs(&form.Files)...)
	return form.Redacted(), nil
}
