package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_OverviewAndDrain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := NewMemoryStore()
	ob := New(store, nil, nil)
	d := NewDrainer(store, DrainerConfig{MaxRetries: 1}, nil, nil)
	d.Register("members", applierFunc(func(context.Context, *Mutation) error { return nil }))
	d.Register("contact_forms", applierFunc(func(context.Context, *Mutation) error { return errors.New("down") }))

	require.NoError(t, ob.Enqueue(ctx, "members", OpInsert, 3, nil, nil))
	require.NoError(t, ob.Enqueue(ctx, "contact_forms", OpDelete, 1001, nil, nil))

	h := NewHandler(ob, d, nil)
	r := gin.New()
	r.GET("/admin/outbox", h.Overview)
	r.POST("/admin/outbox/drain", h.Drain)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/outbox/drain", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var drained struct {
		Data DrainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &drained))
	assert.Equal(t, DrainResult{Applied: 1, Dead: 1}, drained.Data)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/outbox?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var overview struct {
		Data struct {
			Stats Stats      `json:"stats"`
			Dead  []Mutation `json:"dead"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, int64(0), overview.Data.Stats.Pending)
	require.Len(t, overview.Data.Dead, 1)
	assert.Equal(t, "contact_forms", overview.Data.Dead[0].Entity)
	assert.Equal(t, StateFailed, overview.Data.Dead[0].Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/outbox?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
