package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/config"
	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/outbox"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/internal/telemetry"
	"github.com/assoc-site/backend/pkg/cache"
)

var errDown = errors.New("dial tcp: connection refused")

// downDB is a database that is never reachable.
type downDB struct{}

type downRow struct{}

func (downRow) Scan(...any) error { return errDown }

func (downDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errDown
}
func (downDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, errDown }
func (downDB) QueryRow(context.Context, string, ...any) pgx.Row       { return downRow{} }

func newOfflineApp(t *testing.T) (*App, *outbox.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWT:  config.JWTConfig{Secret: "test-secret", ExpireHours: 1},
		Sync: config.SyncConfig{CooldownSec: 30, OutboxMaxRetries: 3},
	}
	a := &App{Config: cfg, Logger: zap.NewNop(), Prom: prometheus.NewRegistry()}
	a.Metrics = telemetry.NewMetrics(a.Prom)
	a.KV = cache.NewMemoryKV()
	a.Cooldown = syncer.NewMemoryCooldown(a.cooldownPeriod())
	store := outbox.NewMemoryStore()
	a.wire(store, nil, downDB{})
	return a, store
}

func adminToken(t *testing.T, a *App) string {
	t.Helper()
	tok, err := a.JWT.Generate(1, "admin@example.com", string(models.RoleAdmin))
	require.NoError(t, err)
	return tok
}

func serve(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_OfflineSubmissionIsQueued(t *testing.T) {
	a, _ := newOfflineApp(t)
	r := a.Router(nil)

	w := serve(r, http.MethodPost, "/forms/contact", "", gin.H{
		"name": "Dana", "email": "dana@example.com", "subject": "Hello", "message": "Do you run workshops?",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, "/admin/outbox", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/admin/outbox", adminToken(t, a), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview struct {
		Data struct {
			Stats outbox.Stats `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, int64(1), overview.Data.Stats.Pending)

	w = serve(r, http.MethodGet, "/admin/forms/contact", adminToken(t, a), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sync_state":"pending_sync"`)
}

func TestRouter_PublicContentAndHealth(t *testing.T) {
	a, _ := newOfflineApp(t)
	r := a.Router(nil)

	w := serve(r, http.MethodGet, "/content/members", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())

	w = serve(r, http.MethodGet, "/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPost, "/admin/members", "", gin.H{"name": "Dana"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMembershipTopicIsRedacted(t *testing.T) {
	a, _ := newOfflineApp(t)
	var got []models.MembershipForm
	cancel := a.Topics.MembershipForms.Subscribe(func(fs []models.MembershipForm) { got = fs })
	defer cancel()

	_, err := a.Membership.Workflow.Submit(context.Background(), models.MembershipForm{
		Username:     "dana",
		Email:        "dana@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuN6VQ8c8a0o7XK4FfM1u0yv0Q0p3n9aG",
		Specialty:    []string{"speech"},
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Empty(t, got[0].PasswordHash)
	stored := a.Membership.List(context.Background())
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].PasswordHash, "the cache keeps the hash for approval")
}

func TestDrainerHasEveryEntity(t *testing.T) {
	a, store := newOfflineApp(t)
	ctx := context.Background()

	_, err := a.Articles.Add(ctx, models.Article{Title: "Early signs"})
	require.NoError(t, err)
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Pending)

	res, err := a.Drainer.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried, "unreachable remote is retried, not dropped for lack of an applier")

	names := make([]string, 0)
	for _, s := range a.Syncers.All() {
		names = append(names, s.Name())
	}
	assert.Equal(t, "members,events,articles,courses,therapy_programs,for_parent_articles,"+
		"membership_forms,contact_forms,reservations,event_registrations", strings.Join(names, ","))
}
