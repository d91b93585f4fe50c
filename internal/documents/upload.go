package documents

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/pkg/extract"
	"github.com/docuflow/backend/pkg/params"
	"github.com/docuflow/backend/pkg/response"
	"github.com/docuflow/backend/pkg/storage"
)

// multipartOverhead allows for form boundaries and fields around the file.
const multipartOverhead = 1 << 20

// Upload handles POST /documents/upload (multipart: file, organization_id?, category?, title?).
func (h *Handler) Upload(c *gin.Context) {
	if h.Files == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}
	maxBytes := h.opts.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, "file is too large")
			return
		}
		response.BadRequest(c, "file is required")
		return
	}
	if header.Size > maxBytes {
		response.PayloadTooLarge(c, "file is too large")
		return
	}
	orgID, ok := params.OptionalUUID(c.PostForm("organization_id"))
	if !ok {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	category := models.CategoryOther
	if raw := c.PostForm("category"); raw != "" {
		if !models.IsCategory(strings.ToLower(raw)) {
			response.BadRequest(c, "unknown category")
			return
		}
		category = strings.ToLower(raw)
	}

	f, err := header.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	_ = f.Close()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	if int64(len(data)) > maxBytes {
		response.PayloadTooLarge(c, "file is too large")
		return
	}
	res, err := extract.Extract(header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedType):
			response.UnsupportedMediaType(c, "only PDF, Word (.docx), .txt and .md files are supported")
		case errors.Is(err, extract.ErrTextTooLarge):
			response.PayloadTooLarge(c, "document text is too large")
		case errors.Is(err, extract.ErrInvalidFile):
			response.BadRequest(c, extract.ErrInvalidFile.Error())
		default:
			middleware.Internal(c, h.Logger, "failed to read document", err)
		}
		return
	}

	userID := middleware.UserID(c)
	if !h.checkCreate(c, userID, orgID) {
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}
	doc := &models.Document{
		ID:             uuid.New(),
		UserID:         userID,
		OrganizationID: orgID,
		Title:          title,
		Category:       category,
		Tags:           []string{},
		Content:        res.Text,
		FileName:       storage.SanitizeFilename(header.Filename),
		FileSize:       int64(len(data)),
		MIMEType:       res.MIMEType,
		PageCount:      res.Pages,
		Status:         models.DocumentProcessing,
	}
	scopeID := userID
	if orgID != nil {
		scopeID = *orgID
	}
	doc.FilePath = storage.DocumentKey(scopeID.String(), doc.ID.String(), header.Filename)

	ctx := c.Request.Context()
	if err := h.Files.Upload(ctx, doc.FilePath, res.MIMEType, bytes.NewReader(data), int64(len(data))); err != nil {
		middleware.Internal(c, h.Logger, "failed to store file", err)
		return
	}
	if err := h.Store.Create(ctx, doc); err != nil {
		if delErr := h.Files.Delete(ctx, doc.FilePath); delErr != nil {
			h.Logger.Warn("remove orphaned file", zap.String("key", doc.FilePath), zap.Error(delErr))
		}
		middleware.Internal(c, h.Logger, "failed to create document", err)
		return
	}
	h.Metrics.DocumentUploaded(doc.FileSize)
	h.afterCreate(c, doc, models.ActionDocumentUploaded)
	response.Created(c, doc)
}

// DownloadResponse carries a short-lived download link.
type DownloadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

// Download handles GET /documents/:id/download.
func (h *Handler) Download(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsRead)
	if !ok {
		return
	}
	if doc.FilePath == "" {
		response.NotFound(c, "document has no stored file")
		return
	}
	if h.Files == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}
	url, err := h.Files.PresignDownload(c.Request.Context(), doc.FilePath, doc.FileName)
	if err != nil {
		middleware.Internal(c, h.Logger, "failed to create download link", err)
		return
	}
	response.OK(c, DownloadResponse{URL: url, FileName: doc.FileName})
}
