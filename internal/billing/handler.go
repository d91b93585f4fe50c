package billing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/params"
	"github.com/docuflow/backend/pkg/response"
)

const maxWebhookBytes = 64 * 1024

// Profiles reads and updates the personal Stripe customer.
type Profiles interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// Organizations looks up organization names for Stripe customers.
type Organizations interface {
	organizations.RoleLookup
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// Handler handles billing HTTP endpoints and the Stripe webhook.
type Handler struct {
	svc      *Service
	gateway  Gateway
	profiles Profiles
	orgs     Organizations
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates a billing handler. gateway is nil when Stripe is not configured.
func NewHandler(svc *Service, gateway Gateway, profiles Profiles, orgs Organizations, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, gateway: gateway, profiles: profiles, orgs: orgs, baseURL: baseURL, logger: logger}
}

// Overview is the response of GET /billing.
type Overview struct {
	Scope             Scope       `json:"scope"`
	Plan              models.Plan `json:"plan"`
	Status            string      `json:"status"`
	CurrentPeriodEnd  *time.Time  `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool        `json:"cancel_at_period_end"`
	Usage             Usage       `json:"usage"`
	Limits            Limits      `json:"limits"`
}

// CheckoutBody is the body for POST /billing/checkout.
type CheckoutBody struct {
	Plan           string     `json:"plan" binding:"required,oneof=pro team"`
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// PortalBody is the body for POST /billing/portal.
type PortalBody struct {
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// URLResponse carries a Stripe-hosted URL.
type URLResponse struct {
	URL string `json:"url"`
}

// Get handles GET /billing?organization_id=.
func (h *Handler) Get(c *gin.Context) {
	orgID, ok := params.OptionalUUID(c.Query("organization_id"))
	if !ok {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	scope, ok := h.scope(c, orgID, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	out := Overview{Scope: scope, Plan: models.PlanFree, Status: "none"}
	sub, err := h.svc.repo.GetForScope(ctx, scope)
	switch {
	case err == nil:
		out.Status = sub.Status
		out.CurrentPeriodEnd = sub.CurrentPeriodEnd
		out.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if sub.Status == "" {
			out.Status = "none"
		}
	case !errors.Is(err, ErrNotFound):
		middleware.Internal(c, h.logger, "failed to load subscription", err)
		return
	}
	if out.Plan, err = h.svc.ActivePlan(ctx, scope); err != nil {
		middleware.Internal(c, h.logger, "failed to load plan", err)
		return
	}
	if out.Usage, err = h.svc.Usage(ctx, scope, out.Plan); err != nil {
		middleware.Internal(c, h.logger, "failed to load usage", err)
		return
	}
	out.Limits = LimitsFor(out.Plan)
	response.OK(c, out)
}

// Checkout handles POST /billing/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	if h.gateway == nil {
		response.ServiceUnavailable(c, "billing is not configured")
		return
	}
	var body CheckoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	plan := models.Plan(body.Plan)
	if plan == models.PlanTeam && body.OrganizationID == nil {
		response.BadRequest(c, "the team plan is only available to organizations")
		return
	}
	priceID := h.svc.prices.PriceID(plan)
	if priceID == "" {
		response.ServiceUnavailable(c, "plan is not available for purchase")
		return
	}
	scope, ok := h.scope(c, body.OrganizationID, true)
	if !ok {
		return
	}
	customerID, err := h.ensureCustomer(c.Request.Context(), c, scope)
	if err != nil {
		middleware.Internal(c, h.logger, "failed to create billing customer", err)
		return
	}
	url, err := h.gateway.CreateCheckoutSession(c.Request.Context(), CheckoutRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: h.baseURL + "/billing?checkout=success",
		CancelURL:  h.baseURL + "/billing?checkout=cancelled",
		Metadata:   scope.Metadata(plan),
	})
	if err != nil {
		middleware.Internal(c, h.logger, "failed to create checkout session", err)
		return
	}
	response.OK(c, URLResponse{URL: url})
}

// Portal handles POST /billing/portal. 404 when the scope has no Stripe customer yet.
func (h *Handler) Portal(c *gin.Context) {
	if h.gateway == nil {
		response.ServiceUnavailable(c, "billing is not configured")
		return
	}
	var body PortalBody
	// The body is optional; chunked requests carry no ContentLength.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, validation.Describe(err))
			return
		}
	}
	scope, ok := h.scope(c, body.OrganizationID, true)
	if !ok {
		return
	}
	customerID, err := h.existingCustomer(c.Request.Context(), scope)
	if err != nil {
		middleware.Internal(c, h.logger, "failed to load billing customer", err)
		return
	}
	if customerID == "" {
		response.NotFound(c, "no billing account yet")
		return
	}
	url, err := h.gateway.CreatePortalSession(c.Request.Context(), customerID, h.baseURL+"/billing")
	if err != nil {
		middleware.Internal(c, h.logger, "failed to create portal session", err)
		return
	}
	response.OK(c, URLResponse{URL: url})
}

// Webhook handles POST /webhooks/stripe.
func (h *Handler) Webhook(c *gin.Context) {
	if h.gateway == nil {
		response.ServiceUnavailable(c, "billing is not configured")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	ev, err := h.gateway.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook rejected", zap.Error(err))
		response.BadRequest(c, "invalid signature")
		return
	}
	if err := h.svc.HandleEvent(c.Request.Context(), ev); err != nil {
		middleware.Internal(c, h.logger, "failed to process stripe event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) scope(c *gin.Context, orgID *uuid.UUID, manage bool) (Scope, bool) {
	scope, err := ResolveScope(c.Request.Context(), h.orgs, middleware.UserID(c), orgID, manage)
	switch {
	case err == nil:
		return scope, true
	case errors.Is(err, ErrNotMember):
		response.NotFound(c, "organization not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	default:
		middleware.Internal(c, h.logger, "failed to resolve billing scope", err)
	}
	return Scope{}, false
}

func (h *Handler) existingCustomer(ctx context.Context, scope Scope) (string, error) {
	if scope.Kind == ScopeUser {
		p, err := h.profiles.Get(ctx, scope.ID)
		if err != nil {
			return "", err
		}
		if p.StripeCustomerID != nil {
			return *p.StripeCustomerID, nil
		}
		return "", nil
	}
	sub, err := h.svc.repo.GetForScope(ctx, scope)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sub.StripeCustomerID, nil
}

func (h *Handler) ensureCustomer(ctx context.Context, c *gin.Context, scope Scope) (string, error) {
	id, err := h.existingCustomer(ctx, scope)
	if err != nil || id != "" {
		return id, err
	}
	email, name := middleware.UserEmail(c), ""
	if scope.Kind == ScopeUser {
		if p, err := h.profiles.Get(ctx, scope.ID); err == nil {
			email, name = p.Email, p.FullName
		}
	} else if org, err := h.orgs.GetByID(ctx, scope.ID); err == nil {
		name = org.Name
	}
	id, err = h.gateway.CreateCustomer(ctx, email, name, scope.Metadata(models.PlanFree))
	if err != nil {
		return "", err
	}
	if scope.Kind == ScopeUser {
		return id, h.profiles.SetStripeCustomerID(ctx, scope.ID, id)
	}
	return id, h.svc.repo.SetCustomer(ctx, scope, id)
}
