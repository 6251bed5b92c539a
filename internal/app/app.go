// Package app wires the stores, managers and workers shared by the server,
// the outbox worker and the synctl CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/assoc-site/backend/config"
	"github.com/assoc-site/backend/internal/auth"
	"github.com/assoc-site/backend/internal/content"
	"github.com/assoc-site/backend/internal/events"
	"github.com/assoc-site/backend/internal/forms"
	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/internal/tables"
	"github.com/assoc-site/backend/internal/telemetry"
	"github.com/assoc-site/backend/pkg/cache"
	"github.com/assoc-site/backend/pkg/database"
	"github.com/assoc-site/backend/pkg/redis"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/storage"
)

// App holds every long-lived component.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client // nil when Redis is disabled
	Prom    *prometheus.Registry
	Metrics *telemetry.Metrics

	KV       cache.KV
	Bus      *events.Bus
	Topics   *events.Topics
	Outbox   *outbox.Outbox
	Drainer  *outbox.Drainer
	Cooldown syncer.Cooldown
	Files    storage.FileStore // nil when S3 is not configured
	Syncers  *syncer.Registry

	JWT  *auth.JWTService
	Auth *auth.Service

	Members           *syncer.Manager[models.Member, *models.Member]
	Events            *content.Events
	Articles          *syncer.Manager[models.Article, *models.Article]
	Courses           *syncer.Manager[models.Course, *models.Course]
	TherapyPrograms   *syncer.Manager[models.TherapyProgram, *models.TherapyProgram]
	ForParentArticles *syncer.Manager[models.ForParentArticle, *models.ForParentArticle]

	Membership  *forms.Membership
	Submissions *forms.Submissions
}

// NewLogger builds the production JSON logger.
func NewLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

// New connects the stores and builds every manager. An unreachable database
// is not fatal; an unreachable Redis is, when one is configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Prom: prometheus.NewRegistry()}
	a.Prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = telemetry.NewMetrics(a.Prom)

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.Pool = pool
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Warn("migrations not applied", zap.Error(err))
		}
	}

	prefix := cfg.Cache.KeyPrefix
	var bridge events.Bridge
	var store outbox.Store
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PingAttempts: cfg.Redis.PingAttempts,
			PingBackoff:  time.Second,
		}, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.Redis = rdb
		a.KV = cache.NewRedisKV(rdb, prefix)
		store = outbox.NewRedisStore(rdb, prefix, logger)
		bridge = events.NewRedisBridge(rdb, prefix, logger)
		a.Cooldown = syncer.NewRedisCooldown(rdb, prefix, a.cooldownPeriod())
	} else {
		logger.Warn("Redis disabled, cache and outbox are in memory")
		a.KV = cache.NewMemoryKV()
		store = outbox.NewMemoryStore()
		a.Cooldown = syncer.NewMemoryCooldown(a.cooldownPeriod())
	}

	if cfg.AWS.Region != "" {
		s3, err := storage.NewS3(ctx, s3Config(cfg.AWS), logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			a.Files = s3
		}
	}

	a.wire(store, bridge, pool)
	return a, nil
}

// wire builds everything above the connections. db backs the remote tables
// and the users repository.
func (a *App) wire(store outbox.Store, bridge events.Bridge, db remote.DBTX) {
	cfg := a.Config
	a.Bus = events.NewBus(bridge, a.Logger)
	a.Topics = events.NewTopics(a.Bus)
	a.Outbox = outbox.New(store, a.Metrics, a.Logger)
	a.Drainer = outbox.NewDrainer(store, outbox.DrainerConfig{
		MaxRetries: cfg.Sync.OutboxMaxRetries,
		Backoff:    time.Duration(cfg.Sync.OutboxBackoffSec) * time.Second,
		Poll:       time.Duration(cfg.Sync.OutboxPollSec) * time.Second,
	}, a.Metrics, a.Logger)

	a.JWT = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	a.Auth = auth.NewService(auth.NewRepository(db), a.JWT, a.Logger)

	a.build(tables.New(db))
}

func (a *App) cooldownPeriod() time.Duration {
	return time.Duration(a.Config.Sync.CooldownSec) * time.Second
}

func s3Config(c config.AWSConfig) storage.S3Config {
	return storage.S3Config{
		Region:          c.Region,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Endpoint:        c.Endpoint,
		PublicBaseURL:   c.PublicBaseURL,
		Buckets: map[string]string{
			storage.DomainMembershipForms: c.MembershipFormsBucket,
			storage.DomainMembers:         c.MembersBucket,
			storage.DomainArticles:        c.ArticlesBucket,
			storage.DomainTherapyPrograms: c.TherapyProgramsBucket,
			storage.DomainCourses:         c.CoursesBucket,
			storage.DomainEvents:          c.EventsBucket,
		},
	}
}

func collection[T any](a *App, name string, topic *events.Topic[[]T]) *cache.Collection[T] {
	return cache.NewCollection[T](a.KV, name, topic.Notifier(), a.Logger)
}

func manager[T any, P models.Record[T]](a *App, name string, local syncer.LocalStore[T], tbl remote.Table[T], key func(*T) string) *syncer.Manager[T, P] {
	return syncer.New[T, P](syncer.Options[T]{
		Name:     name,
		Local:    local,
		Remote:   tbl,
		DedupKey: key,
		Outbox:   a.Outbox,
		Metrics:  a.Metrics,
		Logger:   a.Logger.With(zap.String("entity", name)),
	})
}

// redactForms strips password hashes before forms leave the process.
func redactForms(fs []models.MembershipForm) []models.MembershipForm {
	out := make([]models.MembershipForm, len(fs))
	for i, f := range fs {
		out[i] = f.Redacted()
	}
	return out
}

func (a *App) build(t *tables.Set) {
	tp := a.Topics

	a.Members = manager[models.Member](a, models.EntityMembers,
		collection(a, models.EntityMembers, tp.Members), t.Members, syncer.MemberKey)
	a.Events = content.NewEvents(content.EventsOptions{
		Doc:     cache.NewDocument[models.EventBuckets](a.KV, models.EntityEvents, tp.Events.Notifier(), a.Logger),
		Remote:  t.Events,
		Outbox:  a.Outbox,
		Metrics: a.Metrics,
		Logger:  a.Logger.With(zap.String("entity", models.EntityEvents)),
	})
	a.Articles = manager[models.Article](a, models.EntityArticles,
		collection(a, models.EntityArticles, tp.Articles), t.Articles,
		syncer.TitleKey(func(x *models.Article) string { return x.Title }))
	a.Courses = manager[models.Course](a, models.EntityCourses,
		collection(a, models.EntityCourses, tp.Courses), t.Courses,
		syncer.TitleKey(func(x *models.Course) string { return x.Title }))
	a.TherapyPrograms = manager[models.TherapyProgram](a, models.EntityTherapyPrograms,
		collection(a, models.EntityTherapyPrograms, tp.TherapyPrograms), t.TherapyPrograms,
		syncer.TitleKey(func(x *models.TherapyProgram) string { return x.Title }))
	a.ForParentArticles = manager[models.ForParentArticle](a, models.EntityForParentArticles,
		collection(a, models.EntityForParentArticles, tp.ForParentArticles), t.ForParentArticles,
		syncer.TitleKey(func(x *models.ForParentArticle) string { return x.Title }))

	membershipForms := manager[models.MembershipForm](a, models.EntityMembershipForms,
		cache.NewCollection[models.MembershipForm](a.KV, models.EntityMembershipForms, func(fs []models.MembershipForm) {
			tp.MembershipForms.Publish(context.Background(), redactForms(fs))
		}, a.Logger),
		t.MembershipForms, syncer.MembershipFormKey)
	contactForms := manager[models.ContactForm](a, models.EntityContactForms,
		collection(a, models.EntityContactForms, tp.ContactForms), t.ContactForms, syncer.ContactFormKey)
	reservations := manager[models.Reservation](a, models.EntityReservations,
		collection(a, models.EntityReservations, tp.Reservations), t.Reservations, syncer.ReservationKey)
	registrations := manager[models.EventRegistration](a, models.EntityRegistrations,
		collection(a, models.EntityRegistrations, tp.EventRegistrations), t.EventRegistrations, syncer.EventRegistrationKey)

	a.Membership = forms.NewMembership(
		forms.NewWorkflow(membershipForms, a.Logger),
		a.Files, a.Auth, a.Members, a.Logger,
	)
	a.Submissions = forms.NewSubmissions(
		forms.NewWorkflow(contactForms, a.Logger),
		forms.NewWorkflow(reservations, a.Logger),
		forms.NewWorkflow(registrations, a.Logger),
		a.Events,
	)

	a.Syncers = syncer.NewRegistry(
		a.Members, a.Events, a.Articles, a.Courses, a.TherapyPrograms, a.ForParentArticles,
		membershipForms, contactForms, reservations, registrations,
	)
	for _, s := range a.Syncers.All() {
		a.Drainer.Register(s.Name(), s)
	}
}

// Bootstrap seeds the admin account and runs the startup download.
func (a *App) Bootstrap(ctx context.Context) {
	if a.Config.Admin.Email != "" {
		if err := a.Auth.EnsureAdmin(ctx, a.Config.Admin.Email, a.Config.Admin.Password, a.Config.Admin.Name); err != nil {
			a.Logger.Warn("admin account not ensured", zap.Error(err))
		}
	}
	if a.Config.Sync.StartupSync {
		stagger := time.Duration(a.Config.Sync.StartupStaggerMs) * time.Millisecond
		a.Syncers.StartupDownload(ctx, stagger, a.Logger)
	}
}

// Close releases the connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
