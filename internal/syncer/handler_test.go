package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/remote"
)

func newSyncRouter(f *memberFixture, cd Cooldown) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewRegistry(f.mgr), cd, zap.NewNop())
	r := gin.New()
	r.GET("/admin/sync", h.List)
	r.POST("/admin/sync/:entity/download", h.Download)
	r.POST("/admin/sync/:entity/upload", h.Upload)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_DownloadWithCooldown(t *testing.T) {
	f := newMemberFixture()
	f.table.Rows[1001] = models.Member{Meta: models.Meta{ID: 1001}, Name: "X"}
	r := newSyncRouter(f, NewMemoryCooldown(30*time.Second))

	w := do(r, http.MethodPost, "/admin/sync/members/download")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool           `json:"success"`
		Data    DownloadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.Count)

	w = do(r, http.MethodPost, "/admin/sync/members/download")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	// upload has its own cooldown
	w = do(r, http.MethodPost, "/admin/sync/members/upload")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_UnknownEntity(t *testing.T) {
	r := newSyncRouter(newMemberFixture(), nil)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/admin/sync/webinars/download").Code)
}

func TestHandler_UploadMissingTable(t *testing.T) {
	f := newMemberFixture()
	f.table.GetAllErr = &remote.Error{Code: remote.CodeTableNotFound, Message: "missing"}
	r := newSyncRouter(f, nil)

	w := do(r, http.MethodPost, "/admin/sync/members/upload")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"TABLE_NOT_FOUND"`)
	assert.Contains(t, w.Body.String(), "CREATE TABLE IF NOT EXISTS members")
}

func TestHandler_List(t *testing.T) {
	r := newSyncRouter(newMemberFixture(), nil)
	w := do(r, http.MethodGet, "/admin/sync")
	assert.JSONEq(t, `{"success":true,"data":["members"]}`, w.Body.String())
}

func TestMemoryCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cd := NewMemoryCooldown(30 * time.Second)
	cd.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _, _ := cd.Allow(ctx, "members:download")
	assert.True(t, ok)
	ok, wait, _ := cd.Allow(ctx, "members:download")
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	ok, _, _ = cd.Allow(ctx, "events:download")
	assert.True(t, ok, "keys are independent")

	now = now.Add(31 * time.Second)
	ok, _, _ = cd.Allow(ctx, "members:download")
	assert.True(t, ok)
}
