// Package billing resolves billing scopes, enforces plan limits and syncs Stripe subscriptions.
package billing

import (
	"github.com/docuflow/backend/internal/models"
)

// Limits is what a plan allows within one scope.
type Limits struct {
	Documents         int  `json:"documents"`
	OrganizationsOnly bool `json:"organizations_only"`
}

var planLimits = map[models.Plan]Limits{
	models.PlanFree: {Documents: 25},
	models.PlanPro:  {Documents: 1000},
	models.PlanTeam: {Documents: 10000, OrganizationsOnly: true},
}

// LimitsFor returns the limits of plan; unknown plans get the free limits.
func LimitsFor(plan models.Plan) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[models.PlanFree]
}

// Prices maps paid plans to Stripe price ids.
type Prices struct {
	Pro  string
	Team string
}

// PriceID returns the Stripe price for a paid plan, or "" when not purchasable.
func (p Prices) PriceID(plan models.Plan) string {
	switch plan {
	case models.PlanPro:
		return p.Pro
	case models.PlanTeam:
		return p.Team
	}
	return ""
}

// PlanFor maps a Stripe price id back to a plan. Unknown prices map to free.
func (p Prices) PlanFor(priceID string) models.Plan {
	switch {
	case priceID == "":
		return models.PlanFree
	case priceID == p.Pro:
		return models.PlanPro
	case priceID == p.Team:
		return models.PlanTeam
	}
	return models.PlanFree
}
