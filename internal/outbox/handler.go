package outbox

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/pkg/response"
)

// Handler exposes the outbox to admins.
type Handler struct {
	outbox  *Outbox
	drainer *Drainer
	logger  *zap.Logger
}

// NewHandler creates an outbox handler. drainer may be nil to disable manual drains.
func NewHandler(outbox *Outbox, drainer *Drainer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{outbox: outbox, drainer: drainer, logger: logger}
}

// Overview handles GET /admin/outbox?limit=N.
func (h *Handler) Overview(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 0 {
		response.BadRequest(c, "invalid limit")
		return
	}
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		h.logger.Warn("outbox stats failed", zap.Error(err))
		response.ServiceUnavailable(c, "outbox unavailable")
		return
	}
	dead, err := h.outbox.Dead(c.Request.Context(), limit)
	if err != nil {
		response.ServiceUnavailable(c, "outbox unavailable")
		return
	}
	if dead == nil {
		dead = []Mutation{}
	}
	response.OK(c, gin.H{"stats": stats, "dead": dead})
}

// Drain handles POST /admin/outbox/drain and runs one pass inline.
func (h *Handler) Drain(c *gin.Context) {
	if h.drainer == nil {
		response.ServiceUnavailable(c, "drainer not running in this process")
		return
	}
	res, err := h.drainer.DrainOnce(c.Request.Context())
	if err != nil {
		h.logger.Warn("manual drain failed", zap.Error(err))
		response.ServiceUnavailable(c, "outbox unavailable")
		return
	}
	response.OK(c, res)
}
