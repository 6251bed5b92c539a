package content

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/pkg/remote"
	"github.com/assoc-site/backend/pkg/response"
	"github.com/assoc-site/backend/pkg/storage"
)

// UploadHandler handles admin image and document uploads.
type UploadHandler struct {
	files  storage.FileStore
	logger *zap.Logger
}

// NewUploadHandler creates an upload handler. files may be nil when S3 is not configured.
func NewUploadHandler(files storage.FileStore, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{files: files, logger: logger}
}

// Upload handles POST /admin/uploads/:bucket (multipart: file, optional folder and name).
// The returned FileRef is stored by the client on the record it edits.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.files == nil {
		response.ServiceUnavailable(c, storage.ErrUploadDisabled.Error())
		return
	}
	domain := c.Param("bucket")
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	folder := c.DefaultPostForm("folder", "images")
	base := c.DefaultPostForm("name", domain)

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	ref, err := h.files.UploadFile(c.Request.Context(), domain, folder, base, fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
	if err != nil {
		WriteUploadError(c, err)
		return
	}
	response.Created(c, ref)
}

// WriteUploadError maps storage errors onto responses.
func WriteUploadError(c *gin.Context, err error) {
	var re *remote.Error
	switch {
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrFileType), errors.Is(err, storage.ErrUnknownDomain):
		response.BadRequest(c, err.Error())
	case errors.As(err, &re):
		response.Remote(c, re)
	default:
		response.Internal(c, "upload failed")
	}
}
