package forms

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/content"
	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/response"
	"github.com/assoc-site/backend/pkg/storage"
)

// Form kinds as used in /admin/forms/:kind.
const (
	KindMembership    = "membership"
	KindContact       = "contact"
	KindReservations  = "reservations"
	KindRegistrations = "registrations"
)

// StatusRequest is the body for PATCH /admin/forms/:kind/:id/status.
type StatusRequest struct {
	Status models.Status `json:"status" binding:"required"`
	Notes  string        `json:"notes"`
}

type kind interface {
	list(ctx context.Context) any
	get(ctx context.Context, id int64) (any, error)
	updateStatus(ctx context.Context, id int64, status models.Status, notes string) (any, error)
	remove(ctx context.Context, id int64) error
}

type workflowKind[T any, P models.Reviewable[T]] struct {
	wf *Workflow[T, P]
}

func (k workflowKind[T, P]) list(ctx context.Context) any { return k.wf.List(ctx) }

func (k workflowKind[T, P]) get(ctx context.Context, id int64) (any, error) { return k.wf.Get(ctx, id) }

func (k workflowKind[T, P]) updateStatus(ctx context.Context, id int64, status models.Status, notes string) (any, error) {
	return k.wf.UpdateStatus(ctx, id, status, notes)
}

func (k workflowKind[T, P]) remove(ctx context.Context, id int64) error {
	_, err := k.wf.Delete(ctx, id)
	return err
}

type membershipKind struct {
	svc *Membership
}

func (k membershipKind) list(ctx context.Context) any {
	forms := k.svc.List(ctx)
	for i := range forms {
		forms[i] = forms[i].Redacted()
	}
	return forms
}

func (k membershipKind) get(ctx context.Context, id int64) (any, error) {
	f, err := k.svc.Get(ctx, id)
	return f.Redacted(), err
}

func (k membershipKind) updateStatus(ctx context.Context, id int64, status models.Status, notes string) (any, error) {
	switch status {
	case models.StatusApproved:
		return k.svc.Approve(ctx, id, notes)
	case models.StatusRejected:
		return k.svc.Reject(ctx, id, notes)
	}
	return nil, ErrInvalidStatus
}

func (k membershipKind) remove(ctx context.Context, id int64) error {
	_, err := k.svc.Delete(ctx, id)
	return err
}

// Handler serves public submissions and the admin review endpoints.
type Handler struct {
	membership  *Membership
	submissions *Submissions
	kinds       map[string]kind
	logger      *zap.Logger
}

// NewHandler creates a forms handler.
func NewHandler(membership *Membership, submissions *Submissions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		membership:  membership,
		submissions: submissions,
		kinds: map[string]kind{
			KindMembership:    membershipKind{svc: membership},
			KindContact:       workflowKind[models.ContactForm, *models.ContactForm]{wf: submissions.Contact},
			KindReservations:  workflowKind[models.Reservation, *models.Reservation]{wf: submissions.Reservations},
			KindRegistrations: workflowKind[models.EventRegistration, *models.EventRegistration]{wf: submissions.Registrations},
		},
		logger: logger,
	}
}

// Mount registers the public and admin routes.
func (h *Handler) Mount(public, admin *gin.RouterGroup) {
	public.POST("/forms/membership", h.SubmitMembership)
	public.POST("/forms/contact", h.SubmitContact)
	public.POST("/forms/reservations", h.SubmitReservation)
	public.POST("/events/:id/registrations", h.Register)

	admin.GET("/forms/:kind", h.List)
	admin.GET("/forms/:kind/:id", h.Get)
	admin.PATCH("/forms/:kind/:id/status", h.UpdateStatus)
	admin.DELETE("/forms/:kind/:id", h.Delete)
}

func submitted[T any, P models.Record[T]](c *gin.Context, item T) {
	if P(&item).GetMeta().SyncState == models.SyncPending {
		response.Accepted(c, item)
		return
	}
	response.Created(c, item)
}

// SubmitMembership handles POST /forms/membership (multipart).
func (h *Handler) SubmitMembership(c *gin.Context) {
	var in MembershipInput
	if err := c.ShouldBind(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	uploads := map[string]Upload{}
	if mf, err := c.MultipartForm(); err == nil && mf != nil {
		for _, slot := range Slots {
			fhs := mf.File[slot]
			if len(fhs) == 0 {
				continue
			}
			u, closeFn, err := openUpload(fhs[0])
			if err != nil {
				response.BadRequest(c, "cannot read "+slot)
				return
			}
			defer closeFn()
			uploads[slot] = u
		}
	}
	form, err := h.membership.Submit(c.Request.Context(), in, uploads)
	if err != nil {
		h.writeError(c, err)
		return
	}
	submitted[models.MembershipForm](c, form.Redacted())
}

func openUpload(fh *multipart.FileHeader) (Upload, func() error, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, nil, err
	}
	return Upload{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Size: fh.Size, Body: f}, f.Close, nil
}

// SubmitContact handles POST /forms/contact.
func (h *Handler) SubmitContact(c *gin.Context) {
	var f models.ContactForm
	if err := c.ShouldBindJSON(&f); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	saved, err := h.submissions.SubmitContact(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	submitted[models.ContactForm](c, saved)
}

// SubmitReservation handles POST /forms/reservations.
func (h *Handler) SubmitReservation(c *gin.Context) {
	var r models.Reservation
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	saved, err := h.submissions.SubmitReservation(c.Request.Context(), r)
	if err != nil {
		h.writeError(c, err)
		return
	}
	submitted[models.Reservation](c, saved)
}

// Register handles POST /events/:id/registrations.
func (h *Handler) Register(c *gin.Context) {
	eventID, ok := content.ParseID(c)
	if !ok {
		return
	}
	var r models.EventRegistration
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	saved, err := h.submissions.Register(c.Request.Context(), eventID, r)
	if err != nil {
		h.writeError(c, err)
		return
	}
	submitted[models.EventRegistration](c, saved)
}

func (h *Handler) kind(c *gin.Context) (kind, bool) {
	k, ok := h.kinds[c.Param("kind")]
	if !ok {
		response.NotFound(c, "unknown form kind")
	}
	return k, ok
}

// List handles GET /admin/forms/:kind.
func (h *Handler) List(c *gin.Context) {
	k, ok := h.kind(c)
	if !ok {
		return
	}
	response.OK(c, k.list(c.Request.Context()))
}

// Get handles GET /admin/forms/:kind/:id.
func (h *Handler) Get(c *gin.Context) {
	k, ok := h.kind(c)
	if !ok {
		return
	}
	id, ok := content.ParseID(c)
	if !ok {
		return
	}
	f, err := k.get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, f)
}

// UpdateStatus handles PATCH /admin/forms/:kind/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	k, ok := h.kind(c)
	if !ok {
		return
	}
	id, ok := content.ParseID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := k.updateStatus(c.Request.Context(), id, req.Status, req.Notes)
	if err != nil {
		h.logger.Warn("status update failed", zap.String("kind", c.Param("kind")), zap.Int64("id", id), zap.Error(err))
		h.writeError(c, err)
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /admin/forms/:kind/:id.
func (h *Handler) Delete(c *gin.Context) {
	k, ok := h.kind(c)
	if !ok {
		return
	}
	id, ok := content.ParseID(c)
	if !ok {
		return
	}
	if err := k.remove(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		response.BadRequest(c, "invalid request: "+err.Error())
	case errors.Is(err, ErrAlreadyReviewed):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrEventClosed):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrUnknownEvent):
		response.NotFound(c, err.Error())
	case errors.Is(err, storage.ErrUploadDisabled):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrFileType):
		response.BadRequest(c, err.Error())
	default:
		content.WriteError(c, err)
	}
}
