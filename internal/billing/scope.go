package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
)

// ScopeKind is who a subscription belongs to.
type ScopeKind string

const (
	ScopeUser         ScopeKind = "user"
	ScopeOrganization ScopeKind = "organization"
)

var (
	ErrNotMember = errors.New("not a member of this organization")
	ErrForbidden = errors.New("only the organization owner can manage billing")
)

// Scope identifies the billing owner resolved for a request.
type Scope struct {
	Kind ScopeKind      `json:"kind"`
	ID   uuid.UUID      `json:"id"`
	Role models.OrgRole `json:"role,omitempty"`
}

// Key is the cache key of the scope.
func (s Scope) Key() string {
	return string(s.Kind) + ":" + s.ID.String()
}

// UserScope is the personal scope of userID.
func UserScope(userID uuid.UUID) Scope {
	return Scope{Kind: ScopeUser, ID: userID}
}

// OrganizationScope is the scope of an organization without caller context.
func OrganizationScope(orgID uuid.UUID) Scope {
	return Scope{Kind: ScopeOrganization, ID: orgID}
}

// ResolveScope returns the user scope when orgID is nil, else the organization scope after
// checking membership. With manage set the caller must also hold billing:manage.
func ResolveScope(ctx context.Context, roles organizations.RoleLookup, userID uuid.UUID, orgID *uuid.UUID, manage bool) (Scope, error) {
	if orgID == nil {
		return UserScope(userID), nil
	}
	role, err := roles.GetRole(ctx, *orgID, userID)
	if err != nil {
		if errors.Is(err, organizations.ErrNotMember) {
			return Scope{}, ErrNotMember
		}
		return Scope{}, fmt.Errorf("resolve billing scope: %w", err)
	}
	if manage && !organizations.HasPermission(role, organizations.PermBillingManage) {
		return Scope{}, ErrForbidden
	}
	return Scope{Kind: ScopeOrganization, ID: *orgID, Role: role}, nil
}

// ScopeFromMetadata reads the scope written into Stripe metadata at checkout.
func ScopeFromMetadata(meta map[string]string) (Scope, bool) {
	if meta == nil {
		return Scope{}, false
	}
	id, err := uuid.Parse(meta[metaScopeID])
	if err != nil {
		return Scope{}, false
	}
	switch ScopeKind(meta[metaScopeKind]) {
	case ScopeUser:
		return UserScope(id), true
	case ScopeOrganization:
		return OrganizationScope(id), true
	}
	return Scope{}, false
}

const (
	metaScopeKind = "scope_kind"
	metaScopeID   = "scope_id"
	metaPlan      = "plan"
)

// Metadata is the Stripe metadata identifying the scope and plan.
func (s Scope) Metadata(plan models.Plan) map[string]string {
	return map[string]string{metaScopeKind: string(s.Kind), metaScopeID: s.ID.String(), metaPlan: string(plan)}
}
