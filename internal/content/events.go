package content

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/internal/telemetry"
	"github.com/assoc-site/backend/pkg/cache"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/response"
)

// bucketStore presents the {upcoming, past} document as a flat collection.
type bucketStore struct {
	doc *cache.Document[models.EventBuckets]
}

func (s bucketStore) GetAll(ctx context.Context) []models.Event {
	b := s.doc.Get(ctx)
	out := make([]models.Event, 0, len(b.Upcoming)+len(b.Past))
	for _, e := range b.Upcoming {
		e.Bucket = models.BucketUpcoming
		out = append(out, e)
	}
	for _, e := range b.Past {
		e.Bucket = models.BucketPast
		out = append(out, e)
	}
	return out
}

func (s bucketStore) Save(ctx context.Context, items []models.Event) error {
	b := models.EventBuckets{Upcoming: []models.Event{}, Past: []models.Event{}}
	for _, e := range items {
		if e.Bucket == models.BucketPast {
			b.Past = append(b.Past, e)
		} else {
			e.Bucket = models.BucketUpcoming
			b.Upcoming = append(b.Upcoming, e)
		}
	}
	return s.doc.Save(ctx, b)
}

// Events is the events manager. Events live in the upcoming or past bucket
// and only move between them on request.
type Events struct {
	*syncer.Manager[models.Event, *models.Event]
	doc *cache.Document[models.EventBuckets]
}

// EventsOptions configures NewEvents.
type EventsOptions struct {
	Doc     *cache.Document[models.EventBuckets]
	Remote  remote.Table[models.Event]
	Outbox  syncer.Enqueuer
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// NewEvents creates the events manager.
func NewEvents(opts EventsOptions) *Events {
	m := syncer.New[models.Event](syncer.Options[models.Event]{
		Name:     models.EntityEvents,
		Local:    bucketStore{doc: opts.Doc},
		Remote:   opts.Remote,
		DedupKey: syncer.TitleKey(func(e *models.Event) string { return e.Title }),
		Outbox:   opts.Outbox,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger,
	})
	return &Events{Manager: m, doc: opts.Doc}
}

// Buckets returns the cached document.
func (e *Events) Buckets(ctx context.Context) models.EventBuckets {
	b := e.doc.Get(ctx)
	if b.Upcoming == nil {
		b.Upcoming = []models.Event{}
	}
	if b.Past == nil {
		b.Past = []models.Event{}
	}
	return b
}

// Add stores a new event. Events without a valid bucket go to upcoming.
func (e *Events) Add(ctx context.Context, ev models.Event) (models.Event, error) {
	if !ev.Bucket.Valid() {
		ev.Bucket = models.BucketUpcoming
	}
	return e.Manager.Add(ctx, ev)
}

// Update replaces an event. An empty bucket keeps the current one.
func (e *Events) Update(ctx context.Context, ev models.Event) (models.Event, error) {
	if ev.Bucket == "" {
		cur, err := e.GetByID(ctx, ev.ID)
		if err != nil {
			return models.Event{}, err
		}
		ev.Bucket = cur.Bucket
	}
	if !ev.Bucket.Valid() {
		return models.Event{}, models.ErrInvalidBucket
	}
	return e.Manager.Update(ctx, ev)
}

// MoveToPast moves the event into the past bucket.
func (e *Events) MoveToPast(ctx context.Context, id int64) (models.Event, error) {
	return e.move(ctx, id, models.BucketPast)
}

// MoveToUpcoming moves the event back into the upcoming bucket.
func (e *Events) MoveToUpcoming(ctx context.Context, id int64) (models.Event, error) {
	return e.move(ctx, id, models.BucketUpcoming)
}

func (e *Events) move(ctx context.Context, id int64, to models.EventBucket) (models.Event, error) {
	ev, err := e.GetByID(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	if ev.Bucket == to {
		return ev, nil
	}
	ev.Bucket = to
	return e.Manager.Update(ctx, ev)
}

// EventsHandler adds the bucket endpoints to the events CRUD handler.
type EventsHandler struct {
	*Handler[models.Event, *models.Event]
	events *Events
}

// NewEventsHandler creates the events handler.
func NewEventsHandler(events *Events, cfg Config[models.Event]) *EventsHandler {
	return &EventsHandler{Handler: NewHandler[models.Event, *models.Event](events, cfg), events: events}
}

// Buckets handles GET /events and returns {upcoming, past}.
func (h *EventsHandler) Buckets(c *gin.Context) {
	response.OK(c, h.events.Buckets(c.Request.Context()))
}

// MoveToPast handles POST /admin/events/:id/move-to-past.
func (h *EventsHandler) MoveToPast(c *gin.Context) {
	h.moveTo(c, models.BucketPast)
}

// MoveToUpcoming handles POST /admin/events/:id/move-to-upcoming.
func (h *EventsHandler) MoveToUpcoming(c *gin.Context) {
	h.moveTo(c, models.BucketUpcoming)
}

func (h *EventsHandler) moveTo(c *gin.Context, to models.EventBucket) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	ev, err := h.events.move(c.Request.Context(), id, to)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, ev)
}

// Mount registers the public bucket view and the admin routes.
func (h *EventsHandler) Mount(public, admin *gin.RouterGroup) {
	public.GET("/events", h.Buckets)
	Mount(nil, admin, h)
	admin.POST("/events/:id/move-to-past", h.MoveToPast)
	admin.POST("/events/:id/move-to-upcoming", h.MoveToUpcoming)
}
