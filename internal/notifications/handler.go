package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/i18n"
	"github.com/docuflow/backend/pkg/params"
	"github.com/docuflow/backend/pkg/response"
)

// Store is the notification persistence used by the handler.
type Store interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	repo    Store
	locales middleware.LocaleLookup
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates a notifications handler.
func NewHandler(repo Store, locales middleware.LocaleLookup, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, locales: locales, logger: logger, now: time.Now}
}

// ListResponse is the body of GET /api/notifications.
type ListResponse struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

// List handles GET /api/notifications.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := c.Request.Context()
	unreadOnly := c.Query("unread") == "1" || c.Query("unread") == "true"
	list, err := h.repo.List(ctx, userID, unreadOnly, params.Limit(c.Query("limit"), 50, 100))
	if err != nil {
		middleware.Internal(c, h.logger, "failed to load notifications", err)
		return
	}
	unread, err := h.repo.UnreadCount(ctx, userID)
	if err != nil {
		middleware.Internal(c, h.logger, "failed to count notifications", err)
		return
	}
	locale := middleware.CallerLocale(c, h.locales)
	now := h.now()
	for i := range list {
		list[i].RelativeTime = i18n.RelativeTime(list[i].CreatedAt, now, locale)
	}
	response.OK(c, ListResponse{Items: list, Unread: unread})
}

// MarkRead handles POST /api/notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.repo.MarkRead(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		h.writeErr(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.repo.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Internal(c, h.logger, "failed to mark notifications read", err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// Delete handles DELETE /api/notifications/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		h.writeErr(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeErr(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "notification not found")
		return
	}
	middleware.Internal(c, h.logger, "notification update failed", err)
}
