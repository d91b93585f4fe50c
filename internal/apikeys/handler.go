package apikeys

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/response"
)

// Store is the API key persistence used by Handler.
type Store interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	Create(ctx context.Context, k *models.APIKey) error
	Revoke(ctx context.Context, userID, id uuid.UUID) error
}

// Handler handles /api/api-keys.
type Handler struct {
	repo     Store
	activity activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates an API keys handler.
func NewHandler(repo Store, rec activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, activity: rec, logger: logger}
}

// CreateRequest is the body for POST /api/api-keys.
type CreateRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreatedKey is returned once at creation with the plaintext key.
type CreatedKey struct {
	models.APIKey
	Key string `json:"key"`
}

// List handles GET /api/api-keys.
func (h *Handler) List(c *gin.Context) {
	keys, err := h.repo.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Internal(c, h.logger, "failed to list api keys", err)
		return
	}
	response.OK(c, keys)
}

// Create handles POST /api/api-keys.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name must not be blank")
		return
	}
	plaintext, prefix, hash, err := auth.NewAPIKey()
	if err != nil {
		middleware.Internal(c, h.logger, "failed to generate api key", err)
		return
	}
	userID := middleware.UserID(c)
	key := &models.APIKey{UserID: userID, Name: name, Prefix: prefix, KeyHash: hash}
	if err := h.repo.Create(c.Request.Context(), key); err != nil {
		if errors.Is(err, ErrLimitReached) {
			response.Conflict(c, "you already have the maximum number of active api keys")
			return
		}
		middleware.Internal(c, h.logger, "failed to create api key", err)
		return
	}
	activity.Log(c.Request.Context(), h.activity, h.logger,
		activity.Entry(userID, nil, models.ActionAPIKeyCreated, models.EntityAPIKey, &key.ID, activity.Meta{"name": name}))
	response.Created(c, CreatedKey{APIKey: *key, Key: plaintext})
}

// Revoke handles DELETE /api/api-keys/:id.
func (h *Handler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid api key id")
		return
	}
	userID := middleware.UserID(c)
	if err := h.repo.Revoke(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, ErrNotFound.Error())
			return
		}
		middleware.Internal(c, h.logger, "failed to revoke api key", err)
		return
	}
	activity.Log(c.Request.Context(), h.activity, h.logger,
		activity.Entry(userID, nil, models.ActionAPIKeyRevoked, models.EntityAPIKey, &id, nil))
	response.NoContent(c)
}
