package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/auth"
	"github.com/assoc-site/backend/internal/content"
	"github.com/assoc-site/backend/internal/events"
	"github.com/assoc-site/backend/internal/forms"
	"github.com/assoc-site/backend/internal/middleware"
	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/pkg/response"
	"github.com/assoc-site/backend/pkg/storage"
)

func imageOf[T any](image func(*T) *models.FileRef, domain string, a *App) content.Config[T] {
	return content.Config[T]{Files: a.Files, Domain: domain, Image: image, Logger: a.Logger}
}

// Router builds the HTTP API. hub may be nil to leave /ws unmounted.
func (a *App) Router(hub *events.Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(a.Config.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(a.Logger))

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Prom, promhttp.HandlerOpts{})))

	authHandler := auth.NewHandler(a.Auth, a.Logger)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/auth/me", middleware.JWT(a.JWT), authHandler.Me)

	admin := router.Group("/admin", middleware.AdminOnly(a.JWT)...)
	admin.GET("/users", authHandler.List)
	admin.POST("/users", authHandler.CreateAdmin)

	content.Mount(router.Group("/content"), admin,
		content.NewHandler[models.Member](a.Members,
			imageOf(func(m *models.Member) *models.FileRef { return &m.Image }, storage.DomainMembers, a)),
		content.NewHandler[models.Article](a.Articles,
			imageOf(func(x *models.Article) *models.FileRef { return &x.Image }, storage.DomainArticles, a)),
		content.NewHandler[models.Course](a.Courses,
			imageOf(func(x *models.Course) *models.FileRef { return &x.Image }, storage.DomainCourses, a)),
		content.NewHandler[models.TherapyProgram](a.TherapyPrograms,
			imageOf(func(x *models.TherapyProgram) *models.FileRef { return &x.Image }, storage.DomainTherapyPrograms, a)),
		content.NewHandler[models.ForParentArticle](a.ForParentArticles,
			imageOf(func(x *models.ForParentArticle) *models.FileRef { return &x.Image }, storage.DomainArticles, a)),
	)
	content.NewEventsHandler(a.Events,
		imageOf(func(e *models.Event) *models.FileRef { return &e.Image }, storage.DomainEvents, a),
	).Mount(router.Group(""), admin)

	forms.NewHandler(a.Membership, a.Submissions, a.Logger).Mount(router.Group(""), admin)

	admin.POST("/uploads/:bucket", content.NewUploadHandler(a.Files, a.Logger).Upload)

	syncHandler := syncer.NewHandler(a.Syncers, a.Cooldown, a.Logger)
	admin.GET("/sync", syncHandler.List)
	admin.POST("/sync/:entity/download", syncHandler.Download)
	admin.POST("/sync/:entity/upload", syncHandler.Upload)

	outboxHandler := outbox.NewHandler(a.Outbox, a.Drainer, a.Logger)
	admin.GET("/outbox", outboxHandler.Overview)
	admin.POST("/outbox/drain", outboxHandler.Drain)

	if hub != nil {
		// token in query; browsers cannot set headers on a WebSocket upgrade
		router.GET("/ws", events.ServeWs(hub, a.Logger, a.JWT.WSValidator))
	}
	return router
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "redis": "disabled", "storage": "disabled"}
	if a.Pool == nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
	} else if err := a.Pool.Ping(ctx); err != nil {
		a.Logger.Debug("health: database unreachable", zap.Error(err))
		status["database"] = "unreachable"
		status["status"] = "degraded"
	}
	if a.Redis != nil {
		status["redis"] = "ok"
		if err := a.Redis.Healthy(ctx); err != nil {
			status["redis"] = "unreachable"
			status["status"] = "degraded"
		}
	}
	if a.Files != nil {
		status["storage"] = "ok"
	}
	response.OK(c, status)
}
