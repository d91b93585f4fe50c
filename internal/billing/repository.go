package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/database"
)

var (
	ErrNotFound = errors.New("subscription not found")
	// ErrStaleEvent is returned by Upsert when the stored row was synced from a newer event.
	ErrStaleEvent = errors.New("subscription event older than stored state")
)

// Repository handles subscriptions persistence and usage counts.
type Repository struct {
	db database.DB
}

// NewRepository creates a subscriptions repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `id, user_id, organization_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
	plan, status, current_period_end, cancel_at_period_end, last_event_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	var plan string
	err := row.Scan(&s.ID, &s.UserID, &s.OrganizationID, &s.StripeCustomerID, &s.StripeSubscriptionID, &s.StripePriceID,
		&plan, &s.Status, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.LastEventAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Plan = models.Plan(plan)
	return &s, nil
}

func scopeColumn(s Scope) string {
	if s.Kind == ScopeOrganization {
		return "organization_id"
	}
	return "user_id"
}

// GetForScope returns the subscription row of a scope.
func (r *Repository) GetForScope(ctx context.Context, s Scope) (*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE ` + scopeColumn(s) + ` = $1`
	return scanSubscription(r.db.QueryRow(ctx, q, s.ID))
}

// GetByStripeSubscriptionID returns the row synced from a Stripe subscription.
func (r *Repository) GetByStripeSubscriptionID(ctx context.Context, id string) (*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	return scanSubscription(r.db.QueryRow(ctx, q, id))
}

// Upsert writes the Stripe state of a scope's subscription. A row already synced from a
// newer event is left alone and ErrStaleEvent is returned.
func (r *Repository) Upsert(ctx context.Context, s Scope, sub *models.Subscription) error {
	col := scopeColumn(s)
	q := `INSERT INTO subscriptions (` + col + `, stripe_customer_id, stripe_subscription_id, stripe_price_id,
			plan, status, current_period_end, cancel_at_period_end, last_event_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (` + col + `) WHERE ` + col + ` IS NOT NULL DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			stripe_price_id = EXCLUDED.stripe_price_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			last_event_at = COALESCE(EXCLUDED.last_event_at, subscriptions.last_event_at),
			updated_at = NOW()
		WHERE EXCLUDED.last_event_at IS NULL
			OR subscriptions.last_event_at IS NULL
			OR subscriptions.last_event_at <= EXCLUDED.last_event_at
		RETURNING ` + subscriptionColumns
	out, err := scanSubscription(r.db.QueryRow(ctx, q, s.ID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID,
		string(sub.Plan), sub.Status, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.LastEventAt))
	if errors.Is(err, ErrNotFound) {
		return ErrStaleEvent
	}
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	*sub = *out
	return nil
}

// LinkSubscription records the customer and subscription ids from a completed checkout.
// Plan, status and period are left to subscription events.
func (r *Repository) LinkSubscription(ctx context.Context, s Scope, customerID string, subscriptionID *string) error {
	col := scopeColumn(s)
	q := `INSERT INTO subscriptions (` + col + `, stripe_customer_id, stripe_subscription_id) VALUES ($1, $2, $3)
		ON CONFLICT (` + col + `) WHERE ` + col + ` IS NOT NULL DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			updated_at = NOW()`
	if _, err := r.db.Exec(ctx, q, s.ID, customerID, subscriptionID); err != nil {
		return fmt.Errorf("link subscription: %w", err)
	}
	return nil
}

// SetCustomer records an organization's Stripe customer before it has a subscription.
func (r *Repository) SetCustomer(ctx context.Context, s Scope, customerID string) error {
	col := scopeColumn(s)
	q := `INSERT INTO subscriptions (` + col + `, stripe_customer_id) VALUES ($1, $2)
		ON CONFLICT (` + col + `) WHERE ` + col + ` IS NOT NULL DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id, updated_at = NOW()`
	if _, err := r.db.Exec(ctx, q, s.ID, customerID); err != nil {
		return fmt.Errorf("set customer: %w", err)
	}
	return nil
}

// CountDocuments returns the number of documents stored in a scope.
func (r *Repository) CountDocuments(ctx context.Context, s Scope) (int, error) {
	q := `SELECT COUNT(*) FROM documents WHERE organization_id = $1`
	if s.Kind == ScopeUser {
		q = `SELECT COUNT(*) FROM documents WHERE user_id = $1 AND organization_id IS NULL`
	}
	var n int
	if err := r.db.QueryRow(ctx, q, s.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
