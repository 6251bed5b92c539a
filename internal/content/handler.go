// Package content serves the admin-managed collections: members, articles,
// courses, therapy programs, parents' corner articles and events.
package content

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/response"
	"github.com/assoc-site/backend/pkg/storage"
)

// Store is the entity manager surface used by the handler.
type Store[T any] interface {
	Name() string
	GetAll(ctx context.Context) []T
	GetByID(ctx context.Context, id int64) (T, error)
	Add(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, id int64) (T, error)
}

// Resource is a CRUD endpoint set mounted under a collection name.
type Resource interface {
	Name() string
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type validator interface {
	Validate() error
}

// Config configures a Handler.
type Config[T any] struct {
	// Files and Domain enable best-effort removal of the image on delete.
	Files  storage.FileStore
	Domain string
	Image  func(*T) *models.FileRef
	Logger *zap.Logger
}

// Handler serves CRUD for one collection.
type Handler[T any, P models.Record[T]] struct {
	store  Store[T]
	cfg    Config[T]
	logger *zap.Logger
}

// NewHandler creates a collection handler.
func NewHandler[T any, P models.Record[T]](store Store[T], cfg Config[T]) *Handler[T, P] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler[T, P]{store: store, cfg: cfg, logger: logger.With(zap.String("entity", store.Name()))}
}

// Name returns the collection name.
func (h *Handler[T, P]) Name() string { return h.store.Name() }

// List handles GET on the collection.
func (h *Handler[T, P]) List(c *gin.Context) {
	response.OK(c, h.store.GetAll(c.Request.Context()))
}

// Get handles GET /:id.
func (h *Handler[T, P]) Get(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	item, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, item)
}

// Create handles POST on the collection.
func (h *Handler[T, P]) Create(c *gin.Context) {
	item, ok := h.bind(c)
	if !ok {
		return
	}
	created, err := h.store.Add(c.Request.Context(), item)
	if err != nil {
		h.logger.Warn("create failed", zap.Error(err))
		WriteError(c, err)
		return
	}
	if P(&created).GetMeta().SyncState == models.SyncPending {
		response.Accepted(c, created)
		return
	}
	response.Created(c, created)
}

// Update handles PUT /:id.
func (h *Handler[T, P]) Update(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	item, ok := h.bind(c)
	if !ok {
		return
	}
	P(&item).GetMeta().ID = id
	updated, err := h.store.Update(c.Request.Context(), item)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /:id.
func (h *Handler[T, P]) Delete(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	removed, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	if h.cfg.Files != nil && h.cfg.Image != nil {
		if img := h.cfg.Image(&removed); img.Present() {
			storage.DeleteFiles(c.Request.Context(), h.cfg.Files, h.cfg.Domain, *img)
		}
	}
	response.NoContent(c)
}

func (h *Handler[T, P]) bind(c *gin.Context) (T, bool) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return item, false
	}
	if v, ok := any(P(&item)).(validator); ok {
		if err := v.Validate(); err != nil {
			response.BadRequest(c, err.Error())
			return item, false
		}
	}
	return item, true
}

// ParseID reads the :id path parameter, answering 400 when it is not a positive integer.
func ParseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// WriteError maps manager and remote errors onto responses.
func WriteError(c *gin.Context, err error) {
	var re *remote.Error
	switch {
	case errors.Is(err, syncer.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, models.ErrInvalidBucket):
		response.BadRequest(c, err.Error())
	case errors.As(err, &re):
		response.Remote(c, re)
	default:
		response.Internal(c, err.Error())
	}
}

// Mount registers read routes on public and CRUD routes on admin, both under /{name}.
func Mount(public, admin *gin.RouterGroup, resources ...Resource) {
	for _, r := range resources {
		if public != nil {
			p := public.Group("/" + r.Name())
			p.GET("", r.List)
			p.GET("/:id", r.Get)
		}
		a := admin.Group("/" + r.Name())
		a.GET("", r.List)
		a.GET("/:id", r.Get)
		a.POST("", r.Create)
		a.PUT("/:id", r.Update)
		a.DELETE("/:id", r.Delete)
	}
}
