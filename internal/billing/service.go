package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/metrics"
)

// PlanLimitCode is the response code sent when a plan limit blocks an action.
const PlanLimitCode = "plan_limit_reached"

// ErrPlanLimitReached is returned when a scope has used its plan allowance.
var ErrPlanLimitReached = errors.New("plan document limit reached")

const (
	planCacheSize = 4096
	planCacheTTL  = time.Minute
)

// Store is the persistence surface used by Service.
type Store interface {
	GetForScope(ctx context.Context, s Scope) (*models.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, id string) (*models.Subscription, error)
	Upsert(ctx context.Context, s Scope, sub *models.Subscription) error
	LinkSubscription(ctx context.Context, s Scope, customerID string, subscriptionID *string) error
	SetCustomer(ctx context.Context, s Scope, customerID string) error
	CountDocuments(ctx context.Context, s Scope) (int, error)
}

// Service answers plan questions and applies Stripe webhook events.
type Service struct {
	repo     Store
	prices   Prices
	plans    *expirable.LRU[string, models.Plan]
	activity activity.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a billing service with a one minute plan cache.
func NewService(repo Store, prices Prices, rec activity.Recorder, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		prices:   prices,
		plans:    expirable.NewLRU[string, models.Plan](planCacheSize, nil, planCacheTTL),
		activity: rec,
		metrics:  m,
		logger:   logger,
	}
}

// ActivePlan returns the plan a scope is entitled to right now.
func (s *Service) ActivePlan(ctx context.Context, scope Scope) (models.Plan, error) {
	if p, ok := s.plans.Get(scope.Key()); ok {
		return p, nil
	}
	plan := models.PlanFree
	sub, err := s.repo.GetForScope(ctx, scope)
	switch {
	case err == nil:
		if sub.Entitled() {
			plan = sub.Plan
		}
	case !errors.Is(err, ErrNotFound):
		return "", err
	}
	s.plans.Add(scope.Key(), plan)
	return plan, nil
}

// Invalidate drops the cached plan of a scope.
func (s *Service) Invalidate(scope Scope) {
	s.plans.Remove(scope.Key())
}

// Usage is a scope's document count against its plan limit.
type Usage struct {
	Documents int `json:"documents"`
	Limit     int `json:"limit"`
}

// Usage returns the document usage of a scope under plan.
func (s *Service) Usage(ctx context.Context, scope Scope, plan models.Plan) (Usage, error) {
	n, err := s.repo.CountDocuments(ctx, scope)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Documents: n, Limit: LimitsFor(plan).Documents}, nil
}

// CheckDocumentQuota returns ErrPlanLimitReached when the scope cannot add another document.
func (s *Service) CheckDocumentQuota(ctx context.Context, scope Scope) error {
	plan, err := s.ActivePlan(ctx, scope)
	if err != nil {
		return err
	}
	u, err := s.Usage(ctx, scope, plan)
	if err != nil {
		return err
	}
	if u.Documents >= u.Limit {
		return ErrPlanLimitReached
	}
	return nil
}

// HandleEvent applies a verified Stripe event. Unknown event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, ev stripe.Event) error {
	s.metrics.WebhookEvent(string(ev.Type))
	if ev.Data == nil {
		return nil
	}
	var at time.Time
	if ev.Created > 0 {
		at = time.Unix(ev.Created, 0).UTC()
	}
	switch ev.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.applyCheckout(ctx, &cs)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscription(ctx, &sub, ev.Type == "customer.subscription.deleted", at)
	default:
		s.logger.Debug("ignoring stripe event", zap.String("type", string(ev.Type)))
		return nil
	}
}

// applyCheckout links the Stripe customer and subscription to the scope. Plan and status
// come only from subscription events.
func (s *Service) applyCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	scope, ok := ScopeFromMetadata(cs.Metadata)
	if !ok {
		s.logger.Warn("checkout session without scope metadata", zap.String("session", cs.ID))
		return nil
	}
	if cs.Customer == nil || cs.Customer.ID == "" {
		s.logger.Warn("checkout session without customer", zap.String("session", cs.ID))
		return nil
	}
	var subID *string
	if cs.Subscription != nil && cs.Subscription.ID != "" {
		id := cs.Subscription.ID
		subID = &id
	}
	existing, err := s.repo.GetForScope(ctx, scope)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && subID != nil && existing.StripeSubscriptionID != nil &&
		*existing.StripeSubscriptionID != *subID && existing.Entitled() {
		s.logger.Info("checkout for a replaced subscription ignored",
			zap.String("scope", scope.Key()), zap.String("subscription", *subID))
		return nil
	}
	if err := s.repo.LinkSubscription(ctx, scope, cs.Customer.ID, subID); err != nil {
		return err
	}
	s.Invalidate(scope)
	return nil
}

func (s *Service) applySubscription(ctx context.Context, in *stripe.Subscription, deleted bool, at time.Time) error {
	scope, ok := ScopeFromMetadata(in.Metadata)
	var existing *models.Subscription
	var err error
	if ok {
		existing, err = s.repo.GetForScope(ctx, scope)
	} else {
		existing, err = s.repo.GetByStripeSubscriptionID(ctx, in.ID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("subscription for unknown scope", zap.String("subscription", in.ID))
			return nil
		}
		if err == nil {
			scope = scopeOf(existing)
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if stale(existing, in.ID, at) {
		s.logger.Info("stale subscription event ignored",
			zap.String("scope", scope.Key()), zap.String("subscription", in.ID))
		return nil
	}

	id := in.ID
	sub := &models.Subscription{
		StripeSubscriptionID: &id,
		Status:               string(in.Status),
		CancelAtPeriodEnd:    in.CancelAtPeriodEnd,
	}
	if !at.IsZero() {
		sub.LastEventAt = &at
	}
	if in.Customer != nil {
		sub.StripeCustomerID = in.Customer.ID
	}
	if sub.StripeCustomerID == "" && existing != nil {
		sub.StripeCustomerID = existing.StripeCustomerID
	}
	if in.Items != nil && len(in.Items.Data) > 0 && in.Items.Data[0].Price != nil {
		sub.StripePriceID = in.Items.Data[0].Price.ID
	}
	sub.Plan = s.prices.PlanFor(sub.StripePriceID)
	if in.CurrentPeriodEnd > 0 {
		end := time.Unix(in.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}
	if deleted {
		sub.Status = string(stripe.SubscriptionStatusCanceled)
		sub.Plan = models.PlanFree
	}
	return s.store(ctx, scope, sub)
}

// stale reports whether an event for subscription subID created at at must not overwrite
// existing. Events older than the last applied one are stale, and so are events for another
// subscription while the stored one still grants its plan. A zero at skips the age check.
func stale(existing *models.Subscription, subID string, at time.Time) bool {
	if existing == nil {
		return false
	}
	if !at.IsZero() && existing.LastEventAt != nil && at.Before(*existing.LastEventAt) {
		return true
	}
	return existing.StripeSubscriptionID != nil && *existing.StripeSubscriptionID != subID && existing.Entitled()
}

func (s *Service) store(ctx context.Context, scope Scope, sub *models.Subscription) error {
	if err := s.repo.Upsert(ctx, scope, sub); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			s.logger.Info("stale subscription event ignored", zap.String("scope", scope.Key()))
			return nil
		}
		return err
	}
	s.Invalidate(scope)
	// organization events carry no acting user, so only personal changes reach the audit trail.
	if scope.Kind == ScopeUser {
		activity.Log(ctx, s.activity, s.logger,
			activity.Entry(scope.ID, nil, models.ActionSubscriptionUpdated, models.EntitySubscription, &sub.ID,
				activity.Meta{"plan": sub.Plan, "status": sub.Status}))
	}
	s.logger.Info("subscription synced",
		zap.String("scope", scope.Key()),
		zap.String("plan", string(sub.Plan)),
		zap.String("status", sub.Status))
	return nil
}

func scopeOf(sub *models.Subscription) Scope {
	if sub.OrganizationID != nil {
		return OrganizationScope(*sub.OrganizationID)
	}
	if sub.UserID != nil {
		return UserScope(*sub.UserID)
	}
	return Scope{}
}
