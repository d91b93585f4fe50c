package activity

import (
	"context"
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

// Lister reads activity entries.
type Lister interface {
	ListForOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.ActivityLog, error)
	ListPersonal(ctx context.Context, userID uuid.UUID, limit int) ([]models.ActivityLog, error)
}

// MembershipChecker reports whether a user belongs to an organization.
type MembershipChecker interface {
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// Handler serves the activity feed.
type Handler struct {
	repo    Lister
	members MembershipChecker
	locales middleware.LocaleLookup
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates an activity handler.
func NewHandler(repo Lister, members MembershipChecker, locales middleware.LocaleLookup, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, members: members, locales: locales, logger: logger, now: time.Now}
}

// List handles GET /api/activity.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := c.Request.Context()
	limit := params.Limit(c.Query("limit"), 50, 100)

	var (
		list []models.ActivityLog
		err  error
	)
	if raw := c.Query("organization_id"); raw != "" {
		orgID, perr := uuid.Parse(raw)
		if perr != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		ok, merr := h.members.IsMember(ctx, orgID, userID)
		if merr != nil {
			middleware.Internal(c, h.logger, "failed to check membership", merr)
			return
		}
		if !ok {
			response.NotFound(c, "organization not found")
			return
		}
		list, err = h.repo.ListForOrganization(ctx, orgID, limit)
	} else {
		list, err = h.repo.ListPersonal(ctx, userID, limit)
	}
	if err != nil {
		middleware.Internal(c, h.logger, "failed to load activity", err)
		return
	}

	locale := middleware.CallerLocale(c, h.locales)
	now := h.now()
	for i := range list {
		list[i].RelativeTime = i18n.RelativeTime(list[i].CreatedAt, now, locale)
	}
	response.OK(c, list)
}
