package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a billing tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// Subscription mirrors the Stripe subscription for a user or an organization.
type Subscription struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               *uuid.UUID `json:"user_id,omitempty"`
	OrganizationID       *uuid.UUID `json:"organization_id,omitempty"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID *string    `json:"-"`
	StripePriceID        string     `json:"-"`
	Plan                 Plan       `json:"plan"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	LastEventAt          *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Entitled reports whether the subscription currently grants its plan.
func (s *Subscription) Entitled() bool {
	switch s.Status {
	case "active", "trialing", "past_due":
		return true
	}
	return false
}
