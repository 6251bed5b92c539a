package content

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/pkg/cache"
	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/remote/remotetest"
	"github.com/assoc-site/backend/pkg/storage"
)

type fakeFiles struct {
	deleted  []string
	uploaded []string
	err      error
}

func (f *fakeFiles) UploadFile(_ context.Context, domain, folder, base, filename, contentType string, body io.Reader, size int64) (*models.FileRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(body)
	f.uploaded = append(f.uploaded, domain+"/"+folder+"/"+base+":"+string(b))
	key := folder + "/" + base + ".png"
	return &models.FileRef{Name: filename, Size: size, Type: contentType, StoragePath: key, URL: "https://cdn/" + key, Uploaded: true}, nil
}

func (f *fakeFiles) DeleteObject(_ context.Context, domain, key string) error {
	f.deleted = append(f.deleted, domain+"/"+key)
	return nil
}

func serve(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func newContentRouter(t *testing.T) (*gin.Engine, *remotetest.Table[models.Member, *models.Member], *fakeFiles) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	members := remotetest.NewTable[models.Member, *models.Member](models.EntityMembers)
	courses := remotetest.NewTable[models.Course, *models.Course](models.EntityCourses)
	files := &fakeFiles{}
	kv := cache.NewMemoryKV()

	mm := syncer.New[models.Member](syncer.Options[models.Member]{
		Local:  cache.NewCollection[models.Member](kv, "members", nil, nil),
		Remote: members,
	})
	cm := syncer.New[models.Course](syncer.Options[models.Course]{
		Local:  cache.NewCollection[models.Course](kv, "courses", nil, nil),
		Remote: courses,
	})

	r := gin.New()
	Mount(r.Group("/content"), r.Group("/admin"),
		NewHandler[models.Member](mm, Config[models.Member]{
			Files: files, Domain: storage.DomainMembers,
			Image: func(m *models.Member) *models.FileRef { return &m.Image },
		}),
		NewHandler[models.Course](cm, Config[models.Course]{}),
	)
	return r, members, files
}

func TestHandler_CRUD(t *testing.T) {
	r, table, files := newContentRouter(t)

	w := serve(r, http.MethodPost, "/admin/members", map[string]any{
		"name":  "Dana Haddad",
		"email": "dana@example.com",
		"image": map[string]any{"url": "https://cdn/members/d.png", "storage_path": "members/d.png", "uploaded": true},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Member
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, int64(1001), created.ID)
	assert.Contains(t, table.Rows, int64(1001))

	w = serve(r, http.MethodGet, "/content/members", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Member
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)

	w = serve(r, http.MethodPut, "/admin/members/1001", map[string]any{"name": "Dana H.", "role": "Board"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Board", table.Rows[1001].Role)

	w = serve(r, http.MethodDelete, "/admin/members/1001", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"members/members/d.png"}, files.deleted)
	assert.Empty(t, table.Rows)

	w = serve(r, http.MethodGet, "/content/members/1001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Validation(t *testing.T) {
	r, _, _ := newContentRouter(t)

	w := serve(r, http.MethodPost, "/admin/members", map[string]any{"email": "no-name@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/admin/courses", map[string]any{
		"title": "Intro to ABA",
		"curriculum": []map[string]any{{
			"title":   "Basics",
			"lessons": []map[string]any{{"title": "Welcome", "type": "video"}},
		}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "requires a url")

	w = serve(r, http.MethodGet, "/admin/members/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RemoteDuplicateIsConflict(t *testing.T) {
	r, table, _ := newContentRouter(t)
	table.InsertErr = &remote.Error{Code: remote.CodeDuplicateEmail, Message: "duplicate"}

	w := serve(r, http.MethodPost, "/admin/members", map[string]any{"name": "Dana", "email": "dana@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", decode(t, w).Code)
}

func TestEventsHandler_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newEventsFixture()
	h := NewEventsHandler(f.events, Config[models.Event]{})
	r := gin.New()
	h.Mount(r.Group(""), r.Group("/admin"))

	w := serve(r, http.MethodPost, "/admin/events", map[string]any{"title": "Workshop"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodPost, "/admin/events/1001/move-to-past", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var b models.EventBuckets
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &b))
	assert.Empty(t, b.Upcoming)
	require.Len(t, b.Past, 1)
	assert.Equal(t, "Workshop", b.Past[0].Title)
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, _ = io.Copy(fw, strings.NewReader(content))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	files := &fakeFiles{}
	r := gin.New()
	r.POST("/admin/uploads/:bucket", NewUploadHandler(files, nil).Upload)

	body, ct := multipartBody(t, map[string]string{"folder": "covers", "name": "aba"}, "cover.png", "png-bytes")
	req := httptest.NewRequest(http.MethodPost, "/admin/uploads/courses", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"courses/covers/aba:png-bytes"}, files.uploaded)
	var ref models.FileRef
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &ref))
	assert.True(t, ref.Uploaded)

	files.err = &remote.Error{Code: remote.CodeBucketNotFound, Table: "courses"}
	body, ct = multipartBody(t, nil, "cover.png", "x")
	req = httptest.NewRequest(http.MethodPost, "/admin/uploads/courses", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "BUCKET_NOT_FOUND", decode(t, w).Code)
}

func TestUploadHandler_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin/uploads/:bucket", NewUploadHandler(nil, nil).Upload)

	body, ct := multipartBody(t, nil, "cover.png", "x")
	req := httptest.NewRequest(http.MethodPost, "/admin/uploads/courses", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
