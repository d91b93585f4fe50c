package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotificationDocumentReady  = "document_ready"
	NotificationDocumentFailed = "document_failed"
	NotificationMemberAdded    = "member_added"
	NotificationRoleChanged    = "role_changed"
	NotificationMemberRemoved  = "member_removed"
)

// Notification is an in-app message for a single user.
type Notification struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Link         string     `json:"link,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RelativeTime string     `json:"relative_time,omitempty"`
}
