package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/auth"
)

func newRouter(jwt *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(zap.NewNop()), CORS("https://assoc.example.org"))
	admin := r.Group("/admin", AdminOnly(jwt)...)
	admin.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c)})
	})
	return r
}

func get(r http.Handler, token, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminOnly(t *testing.T) {
	jwt := auth.NewJWTService("secret", 1)
	r := newRouter(jwt)

	assert.Equal(t, http.StatusUnauthorized, get(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "garbage", "").Code)

	member, err := jwt.Generate(7, "m@example.org", "member")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, member, "").Code)

	admin, err := jwt.Generate(1, "a@example.org", "admin")
	require.NoError(t, err)
	w := get(r, admin, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":1}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	r := newRouter(auth.NewJWTService("secret", 1))

	w := get(r, "", "https://assoc.example.org")
	assert.Equal(t, "https://assoc.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")

	w = get(r, "", "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/admin/ping", nil)
	req.Header.Set("Origin", "https://assoc.example.org")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOriginSet(t *testing.T) {
	s := parseOrigins("https://assoc.example.org/, https://*.preview.example.org")
	assert.False(t, s.any)
	assert.True(t, s.allow("https://assoc.example.org"))
	assert.True(t, s.allow("https://pr-12.preview.example.org"))
	assert.False(t, s.allow("https://preview.example.org"))
	assert.False(t, s.allow("http://pr-12.preview.example.org"))
	assert.False(t, s.allow("https://evil.example.org"))

	assert.True(t, parseOrigins("").any)
	assert.True(t, parseOrigins("*, https://a.org").any)
}
