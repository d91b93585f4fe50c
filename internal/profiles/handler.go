package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/response"
)

// Store is the profile persistence used by the handler.
type Store interface {
	Ensure(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, id uuid.UUID, fullName, locale *string) (*models.Profile, error)
}

// Handler handles the current user's profile.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates a profiles handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// UpdateProfileRequest is the body for PATCH /api/me.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name" binding:"omitempty,max=255"`
	Locale   *string `json:"locale" binding:"omitempty,locale"`
}

// Me handles GET /api/me. Session callers get their profile created on first call.
func (h *Handler) Me(c *gin.Context) {
	userID := middleware.UserID(c)
	var (
		p   *models.Profile
		err error
	)
	if email := middleware.UserEmail(c); email != "" {
		p, err = h.repo.Ensure(c.Request.Context(), userID, email)
	} else {
		p, err = h.repo.Get(c.Request.Context(), userID)
	}
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "profile not found")
		return
	}
	if err != nil {
		middleware.Internal(c, h.logger, "failed to load profile", err)
		return
	}
	response.OK(c, p)
}

// Update handles PATCH /api/me.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		req.FullName = &name
	}
	p, err := h.repo.Update(c.Request.Context(), middleware.UserID(c), req.FullName, req.Locale)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "profile not found")
		return
	}
	if err != nil {
		middleware.Internal(c, h.logger, "failed to update profile", err)
		return
	}
	response.OK(c, p)
}
