package organizations

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/response"
)

const (
	// ContextOrganizationID is the context key for the organization resolved from :id.
	ContextOrganizationID = "organization_id"
	// ContextOrgRole is the context key for the caller's role in that organization.
	ContextOrgRole = "org_role"
)

// RoleLookup returns a user's role in an organization.
type RoleLookup interface {
	GetRole(ctx context.Context, orgID, userID uuid.UUID) (models.OrgRole, error)
}

// RequireOrgPermission loads the caller's membership for :id. Non-members get 404 so
// organization ids do not leak; members lacking perm get 403.
func RequireOrgPermission(roles RoleLookup, perm Permission, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		role, err := roles.GetRole(c.Request.Context(), orgID, middleware.UserID(c))
		if err != nil {
			if errors.Is(err, ErrNotMember) {
				response.NotFound(c, "organization not found")
			} else {
				middleware.Internal(c, logger, "failed to load membership", err)
			}
			c.Abort()
			return
		}
		if !HasPermission(role, perm) {
			response.Forbidden(c, "insufficient organization permissions")
			c.Abort()
			return
		}
		c.Set(ContextOrganizationID, orgID)
		c.Set(ContextOrgRole, role)
		c.Next()
	}
}

// OrgID returns the organization id set by RequireOrgPermission.
func OrgID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextOrganizationID).(uuid.UUID)
}

// OrgRole returns the caller's role set by RequireOrgPermission.
func OrgRole(c *gin.Context) models.OrgRole {
	return c.MustGet(ContextOrgRole).(models.OrgRole)
}
