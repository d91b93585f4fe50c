package documents

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/response"
	"github.com/docuflow/backend/pkg/utils"
)

const defaultShareHours = 168

// ShareRequest is the body for POST /documents/:id/share.
type ShareRequest struct {
	ExpiresInHours int `json:"expires_in_hours" binding:"omitempty,min=1,max=720"`
}

// ShareResponse describes an active share link.
type ShareResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Share handles POST /documents/:id/share. A new token replaces any previous one.
func (h *Handler) Share(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsWrite)
	if !ok {
		return
	}
	var body ShareRequest
	// The body is optional; chunked requests carry no ContentLength.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, validation.Describe(err))
			return
		}
	}
	hours := body.ExpiresInHours
	if hours == 0 {
		hours = defaultShareHours
	}
	token, err := utils.ShareToken()
	if err != nil {
		middleware.Internal(c, h.Logger, "failed to create share token", err)
		return
	}
	expiresAt := h.now().UTC().Add(time.Duration(hours) * time.Hour).Truncate(time.Second)
	if err := h.Store.SetShare(c.Request.Context(), doc.ID, token, expiresAt); err != nil {
		h.notFoundOrInternal(c, err, "failed to share document")
		return
	}
	h.log(c, doc, models.ActionDocumentShared, nil)
	response.OK(c, ShareResponse{Token: token, URL: h.opts.PublicBaseURL + "/shared/" + token, ExpiresAt: expiresAt})
}

// Unshare handles DELETE /documents/:id/share.
func (h *Handler) Unshare(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsWrite)
	if !ok {
		return
	}
	if err := h.Store.ClearShare(c.Request.Context(), doc.ID); err != nil {
		middleware.Internal(c, h.Logger, "failed to unshare document", err)
		return
	}
	if doc.ShareToken != nil {
		h.log(c, doc, models.ActionDocumentUnshared, nil)
	}
	response.NoContent(c)
}

// Shared handles the public GET /shared/:token.
func (h *Handler) Shared(c *gin.Context) {
	token := c.Param("token")
	if len(token) != 43 {
		response.NotFound(c, "shared document not found")
		return
	}
	doc, err := h.Store.GetByShareToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "shared document not found")
			return
		}
		middleware.Internal(c, h.Logger, "failed to load shared document", err)
		return
	}
	if doc.ShareExpiresAt == nil || doc.ShareExpired(h.now()) {
		response.Gone(c, "this share link has expired")
		return
	}
	response.OK(c, models.SharedDocument{
		Title:     doc.Title,
		Category:  doc.Category,
		Summary:   doc.Summary,
		Tags:      doc.Tags,
		Content:   doc.Content,
		ExpiresAt: *doc.ShareExpiresAt,
	})
}
