package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a personal access key. The secret is only ever returned at creation.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Active reports whether the key has not been revoked.
func (k *APIKey) Active() bool {
	return k.RevokedAt == nil
}
