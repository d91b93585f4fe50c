package organizations

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/notifications"
	"github.com/docuflow/backend/internal/profiles"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/i18n"
	"github.com/docuflow/backend/pkg/response"
)

// Store is the persistence surface used by Handler.
type Store interface {
	RoleLookup
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*models.Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.OrganizationWithRole, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error)
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error)
	AddMember(ctx context.Context, orgID, userID uuid.UUID, role models.OrgRole) (*models.OrganizationMember, error)
	UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.OrgRole) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error
}

// ProfileFinder resolves invitees by email.
type ProfileFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo     Store
	profiles ProfileFinder
	notifier notifications.Notifier
	activity activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo Store, finder ProfileFinder, notifier notifications.Notifier, rec activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, profiles: finder, notifier: notifier, activity: rec, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
	Slug string `json:"slug" binding:"required,slug"`
}

// UpdateOrganizationRequest is the body for PATCH /organizations/:id.
type UpdateOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// AddMemberRequest is the body for POST /organizations/:id/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"omitempty,oneof=admin member"`
}

// UpdateMemberRequest is the body for PATCH /organizations/:id/members/:userId.
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required,oneof=admin member"`
}

// Create handles POST /organizations. The caller becomes owner.
func (h *Handler) Create(c *gin.Context) {
	userID := middleware.UserID(c)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	org := &models.Organization{Name: strings.TrimSpace(body.Name), Slug: NormalizeSlug(body.Slug), OwnerID: userID}
	if org.Name == "" {
		response.BadRequest(c, "name must not be blank")
		return
	}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, ErrSlugTaken.Error())
			return
		}
		middleware.Internal(c, h.logger, "failed to create organization", err)
		return
	}
	activity.Log(c.Request.Context(), h.activity, h.logger,
		activity.Entry(userID, &org.ID, models.ActionOrganizationCreated, models.EntityOrganization, &org.ID, activity.Meta{"slug": org.Slug}))
	response.Created(c, models.OrganizationWithRole{Organization: *org, Role: models.OrgRoleOwner, MemberCount: 1})
}

// ListMine handles GET /organizations.
func (h *Handler) ListMine(c *gin.Context) {
	orgs, err := h.repo.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Internal(c, h.logger, "failed to load organizations", err)
		return
	}
	response.OK(c, orgs)
}

// OrganizationResponse is an organization with the caller's role and permissions.
type OrganizationResponse struct {
	models.Organization
	Role        models.OrgRole `json:"role"`
	Permissions []Permission   `json:"permissions"`
}

// Get handles GET /organizations/:id (members only).
func (h *Handler) Get(c *gin.Context) {
	org, err := h.repo.GetByID(c.Request.Context(), OrgID(c))
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to load organization")
		return
	}
	role := OrgRole(c)
	response.OK(c, OrganizationResponse{Organization: *org, Role: role, Permissions: Permissions(role)})
}

// Update handles PATCH /organizations/:id (org:update).
func (h *Handler) Update(c *gin.Context) {
	var body UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		response.BadRequest(c, "name must not be blank")
		return
	}
	orgID := OrgID(c)
	org, err := h.repo.Rename(c.Request.Context(), orgID, name)
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to update organization")
		return
	}
	activity.Log(c.Request.Context(), h.activity, h.logger,
		activity.Entry(middleware.UserID(c), &orgID, models.ActionOrganizationUpdated, models.EntityOrganization, &orgID, activity.Meta{"name": name}))
	response.OK(c, org)
}

// Delete handles DELETE /organizations/:id (org:delete).
func (h *Handler) Delete(c *gin.Context) {
	orgID := OrgID(c)
	if err := h.repo.Delete(c.Request.Context(), orgID); err != nil {
		h.notFoundOrInternal(c, err, "failed to delete organization")
		return
	}
	// the organization's own log rows cascade, so the entry is personal.
	activity.Log(c.Request.Context(), h.activity, h.logger,
		activity.Entry(middleware.UserID(c), nil, models.ActionOrganizationDeleted, models.EntityOrganization, &orgID, nil))
	response.NoContent(c)
}

// ListMembers handles GET /organizations/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.repo.ListMembers(c.Request.Context(), OrgID(c))
	if err != nil {
		middleware.Internal(c, h.logger, "failed to load members", err)
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /organizations/:id/members (members:manage). The invitee must
// already have a profile. Only owners may add admins.
func (h *Handler) AddMember(c *gin.Context) {
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	role := models.OrgRoleMember
	if body.Role != "" {
		role = models.OrgRole(body.Role)
	}
	if !CanManageRole(OrgRole(c), role) {
		response.Forbidden(c, "you cannot grant this role")
		return
	}
	ctx := c.Request.Context()
	profile, err := h.profiles.GetByEmail(ctx, body.Email)
	if errors.Is(err, profiles.ErrNotFound) || (err == nil && profile == nil) {
		response.NotFound(c, "no user with this email")
		return
	}
	if err != nil {
		middleware.Internal(c, h.logger, "failed to look up invitee", err)
		return
	}
	orgID := OrgID(c)
	member, err := h.repo.AddMember(ctx, orgID, profile.ID, role)
	if err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			response.Conflict(c, ErrAlreadyMember.Error())
			return
		}
		middleware.Internal(c, h.logger, "failed to add member", err)
		return
	}
	org := h.orgName(ctx, orgID)
	notifications.Send(ctx, h.notifier, h.logger, notifications.Notice{
		UserID:     profile.ID,
		Type:       models.NotificationMemberAdded,
		Link:       "/organizations/" + orgID.String(),
		TitleKey:   i18n.KeyMemberAddedTitle,
		MessageKey: i18n.KeyMemberAddedMessage,
		Args:       []interface{}{org, string(role)},
	})
	activity.Log(ctx, h.activity, h.logger,
		activity.Entry(middleware.UserID(c), &orgID, models.ActionMemberAdded, models.EntityMember, &profile.ID, activity.Meta{"role": role, "email": profile.Email}))
	response.Created(c, member)
}

// UpdateMember handles PATCH /organizations/:id/members/:userId (members:manage).
func (h *Handler) UpdateMember(c *gin.Context) {
	targetID, ok := h.memberParam(c)
	if !ok {
		return
	}
	var body UpdateMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	newRole := models.OrgRole(body.Role)
	ctx := c.Request.Context()
	orgID := OrgID(c)
	target, err := h.repo.GetMember(ctx, orgID, targetID)
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to load member")
		return
	}
	actor := OrgRole(c)
	if !CanManageRole(actor, target.Role) || !CanManageRole(actor, newRole) {
		response.Forbidden(c, "you cannot change this member's role")
		return
	}
	if target.Role == newRole {
		response.OK(c, target)
		return
	}
	if err := h.repo.UpdateMemberRole(ctx, orgID, targetID, newRole); err != nil {
		h.notFoundOrInternal(c, err, "failed to update member")
		return
	}
	previous := target.Role
	target.Role = newRole
	notifications.Send(ctx, h.notifier, h.logger, notifications.Notice{
		UserID:     targetID,
		Type:       models.NotificationRoleChanged,
		Link:       "/organizations/" + orgID.String(),
		TitleKey:   i18n.KeyRoleChangedTitle,
		MessageKey: i18n.KeyRoleChangedMessage,
		Args:       []interface{}{h.orgName(ctx, orgID), string(newRole)},
	})
	activity.Log(ctx, h.activity, h.logger,
		activity.Entry(middleware.UserID(c), &orgID, models.ActionMemberRoleChanged, models.EntityMember, &targetID, activity.Meta{"from": previous, "to": newRole}))
	response.OK(c, target)
}

// RemoveMember handles DELETE /organizations/:id/members/:userId (members:manage).
func (h *Handler) RemoveMember(c *gin.Context) {
	targetID, ok := h.memberParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orgID := OrgID(c)
	if targetID == middleware.UserID(c) {
		response.BadRequest(c, "use leave to remove yourself")
		return
	}
	target, err := h.repo.GetMember(ctx, orgID, targetID)
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to load member")
		return
	}
	if !CanManageRole(OrgRole(c), target.Role) {
		response.Forbidden(c, "you cannot remove this member")
		return
	}
	if err := h.repo.RemoveMember(ctx, orgID, targetID); err != nil {
		h.notFoundOrInternal(c, err, "failed to remove member")
		return
	}
	notifications.Send(ctx, h.notifier, h.logger, notifications.Notice{
		UserID:     targetID,
		Type:       models.NotificationMemberRemoved,
		TitleKey:   i18n.KeyMemberRemovedTitle,
		MessageKey: i18n.KeyMemberRemovedMessage,
		Args:       []interface{}{h.orgName(ctx, orgID)},
	})
	activity.Log(ctx, h.activity, h.logger,
		activity.Entry(middleware.UserID(c), &orgID, models.ActionMemberRemoved, models.EntityMember, &targetID, activity.Meta{"email": target.Email}))
	response.NoContent(c)
}

// Leave handles POST /organizations/:id/leave. Owners cannot leave their organization.
func (h *Handler) Leave(c *gin.Context) {
	orgID := OrgID(c)
	if OrgRole(c) == models.OrgRoleOwner {
		response.BadRequest(c, "the owner cannot leave the organization")
		return
	}
	userID := middleware.UserID(c)
	if err := h.repo.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		h.notFoundOrInternal(c, err, "failed to leave organization")
		return
	}
	activity.Log(c.Request.Context(), h.activity, h.logger,
		activity.Entry(userID, &orgID, models.ActionMemberLeft, models.EntityMember, &userID, nil))
	response.NoContent(c)
}

func (h *Handler) memberParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) orgName(ctx context.Context, orgID uuid.UUID) string {
	org, err := h.repo.GetByID(ctx, orgID)
	if err != nil {
		return ""
	}
	return org.Name
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "organization not found")
	case errors.Is(err, ErrMemberMissing):
		response.NotFound(c, "member not found")
	default:
		middleware.Internal(c, h.logger, msg, err)
	}
}
