package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity actions.
const (
	ActionDocumentCreated     = "document.created"
	ActionDocumentUploaded    = "document.uploaded"
	ActionDocumentUpdated     = "document.updated"
	ActionDocumentDeleted     = "document.deleted"
	ActionDocumentProcessed   = "document.processed"
	ActionDocumentShared      = "document.shared"
	ActionDocumentUnshared    = "document.unshared"
	ActionOrganizationCreated = "organization.created"
	ActionOrganizationUpdated = "organization.updated"
	ActionOrganizationDeleted = "organization.deleted"
	ActionMemberAdded         = "member.added"
	ActionMemberRoleChanged   = "member.role_changed"
	ActionMemberRemoved       = "member.removed"
	ActionMemberLeft          = "member.left"
	ActionAPIKeyCreated       = "api_key.created"
	ActionAPIKeyRevoked       = "api_key.revoked"
	ActionSubscriptionUpdated = "subscription.updated"
)

// Entity types referenced by activity entries.
const (
	EntityDocument     = "document"
	EntityOrganization = "organization"
	EntityMember       = "member"
	EntityAPIKey       = "api_key"
	EntitySubscription = "subscription"
)

// ActivityLog is an audit entry.
type ActivityLog struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	OrganizationID *uuid.UUID      `json:"organization_id,omitempty"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entity_type"`
	EntityID       *uuid.UUID      `json:"entity_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	RelativeTime   string          `json:"relative_time,omitempty"`
}
