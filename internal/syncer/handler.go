package syncer

import (
	"fmt"
	"math"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/response"
)

// Handler serves the admin sync triggers.
type Handler struct {
	registry *Registry
	cooldown Cooldown
	logger   *zap.Logger
}

// NewHandler creates a sync handler. cooldown may be nil.
func NewHandler(registry *Registry, cooldown Cooldown, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, cooldown: cooldown, logger: logger}
}

// Download handles POST /admin/sync/:entity/download.
func (h *Handler) Download(c *gin.Context) {
	s, ok := h.begin(c, "download")
	if !ok {
		return
	}
	res, err := s.Download(c.Request.Context())
	if err != nil {
		response.Remote(c, remote.Classify(err, s.Name()))
		return
	}
	response.OK(c, res)
}

// Upload handles POST /admin/sync/:entity/upload.
func (h *Handler) Upload(c *gin.Context) {
	s, ok := h.begin(c, "upload")
	if !ok {
		return
	}
	sum, err := s.Upload(c.Request.Context())
	if err != nil {
		response.Remote(c, remote.Classify(err, s.Name()))
		return
	}
	response.OK(c, sum)
}

// List handles GET /admin/sync and returns the registered entity names.
func (h *Handler) List(c *gin.Context) {
	names := make([]string, 0)
	for _, s := range h.registry.All() {
		names = append(names, s.Name())
	}
	response.OK(c, names)
}

func (h *Handler) begin(c *gin.Context, direction string) (Syncer, bool) {
	entity := c.Param("entity")
	s, ok := h.registry.Get(entity)
	if !ok {
		response.NotFound(c, "unknown entity")
		return nil, false
	}
	if h.cooldown == nil {
		return s, true
	}
	allowed, wait, err := h.cooldown.Allow(c.Request.Context(), entity+":"+direction)
	if err != nil {
		// fail open
		h.logger.Warn("sync cooldown check failed", zap.String("entity", entity), zap.Error(err))
		return s, true
	}
	if !allowed {
		secs := int(math.Ceil(wait.Seconds()))
		c.Header("Retry-After", fmt.Sprint(secs))
		response.TooManyRequests(c, fmt.Sprintf("%s %s on cooldown, retry in %ds", entity, direction, secs))
		return nil, false
	}
	return s, true
}
