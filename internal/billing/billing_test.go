package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
}

type fakeRoles map[uuid.UUID]models.OrgRole

func (f fakeRoles) GetRole(_ context.Context, orgID, _ uuid.UUID) (models.OrgRole, error) {
	if r, ok := f[orgID]; ok {
		return r, nil
	}
	return "", organizations.ErrNotMember
}

func (f fakeRoles) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return &models.Organization{ID: id, Name: "Acme"}, nil
}

func TestResolveScope(t *testing.T) {
	userID, owned, joined, foreign := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	roles := fakeRoles{owned: models.OrgRoleOwner, joined: models.OrgRoleMember}
	ctx := context.Background()

	s, err := ResolveScope(ctx, roles, userID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, Scope{Kind: ScopeUser, ID: userID}, s)

	s, err = ResolveScope(ctx, roles, userID, &joined, false)
	require.NoError(t, err)
	assert.Equal(t, ScopeOrganization, s.Kind)
	assert.Equal(t, models.OrgRoleMember, s.Role)

	_, err = ResolveScope(ctx, roles, userID, &joined, true)
	assert.ErrorIs(t, err, ErrForbidden)

	s, err = ResolveScope(ctx, roles, userID, &owned, true)
	require.NoError(t, err)
	assert.Equal(t, owned, s.ID)

	_, err = ResolveScope(ctx, roles, userID, &foreign, false)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestScopeMetadataRoundTrip(t *testing.T) {
	s := OrganizationScope(uuid.New())
	meta := s.Metadata(models.PlanTeam)
	assert.Equal(t, "team", meta["plan"])
	got, ok := ScopeFromMetadata(meta)
	require.True(t, ok)
	assert.Equal(t, s, got)

	_, ok = ScopeFromMetadata(map[string]string{"scope_kind": "user", "scope_id": "nope"})
	assert.False(t, ok)
	_, ok = ScopeFromMetadata(nil)
	assert.False(t, ok)
}

func TestPlans(t *testing.T) {
	assert.Equal(t, 25, LimitsFor(models.PlanFree).Documents)
	assert.Equal(t, 1000, LimitsFor(models.PlanPro).Documents)
	assert.True(t, LimitsFor(models.PlanTeam).OrganizationsOnly)
	assert.Equal(t, 25, LimitsFor("enterprise").Documents)

	p := Prices{Pro: "price_pro", Team: "price_team"}
	assert.Equal(t, "price_team", p.PriceID(models.PlanTeam))
	assert.Equal(t, "", p.PriceID(models.PlanFree))
	assert.Equal(t, models.PlanPro, p.PlanFor("price_pro"))
	assert.Equal(t, models.PlanFree, p.PlanFor("price_legacy"))
}

type memStore struct {
	subs   map[string]*models.Subscription
	counts map[string]int
	gets   int
}

func newMemStore() *memStore {
	return &memStore{subs: map[string]*models.Subscription{}, counts: map[string]int{}}
}

func (m *memStore) GetForScope(_ context.Context, s Scope) (*models.Subscription, error) {
	m.gets++
	if sub, ok := m.subs[s.Key()]; ok {
		return sub, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) GetByStripeSubscriptionID(_ context.Context, id string) (*models.Subscription, error) {
	for _, sub := range m.subs {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == id {
			return sub, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Upsert(_ context.Context, s Scope, sub *models.Subscription) error {
	sub.ID = uuid.New()
	if s.Kind == ScopeOrganization {
		sub.OrganizationID = &s.ID
	} else {
		sub.UserID = &s.ID
	}
	m.subs[s.Key()] = sub
	return nil
}

func (m *memStore) LinkSubscription(_ context.Context, s Scope, customerID string, subscriptionID *string) error {
	sub, ok := m.subs[s.Key()]
	if !ok {
		sub = &models.Subscription{ID: uuid.New(), Plan: models.PlanFree, Status: "incomplete"}
		m.subs[s.Key()] = sub
	}
	sub.StripeCustomerID = customerID
	if subscriptionID != nil {
		sub.StripeSubscriptionID = subscriptionID
	}
	return nil
}

func (m *memStore) SetCustomer(_ context.Context, s Scope, customerID string) error {
	return m.LinkSubscription(context.Background(), s, customerID, nil)
}

func (m *memStore) CountDocuments(_ context.Context, s Scope) (int, error) {
	return m.counts[s.Key()], nil
}

func TestService_ActivePlanCachedAndQuota(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Prices{Pro: "price_pro"}, nil, nil, nil)
	scope := UserScope(uuid.New())
	store.subs[scope.Key()] = &models.Subscription{Plan: models.PlanPro, Status: "active"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		plan, err := svc.ActivePlan(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, models.PlanPro, plan)
	}
	assert.Equal(t, 1, store.gets)

	store.counts[scope.Key()] = 999
	assert.NoError(t, svc.CheckDocumentQuota(ctx, scope))
	store.counts[scope.Key()] = 1000
	assert.ErrorIs(t, svc.CheckDocumentQuota(ctx, scope), ErrPlanLimitReached)

	// a lapsed subscription falls back to free once the cache is dropped
	store.subs[scope.Key()].Status = "canceled"
	svc.Invalidate(scope)
	plan, err := svc.ActivePlan(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, plan)
}

func event(t *testing.T, typ string, obj interface{}) stripe.Event {
	return eventAt(t, typ, obj, 0)
}

func eventAt(t *testing.T, typ string, obj interface{}, created int64) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return stripe.Event{Type: stripe.EventType(typ), Created: created, Data: &stripe.EventData{Raw: raw}}
}

func subscriptionObject(id, status, price string, periodEnd int64, meta map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":                 id,
		"customer":           "cus_1",
		"status":             status,
		"current_period_end": periodEnd,
		"metadata":           meta,
		"items": map[string]interface{}{
			"object": "list",
			"data":   []interface{}{map[string]interface{}{"id": "si_" + id, "price": map[string]interface{}{"id": price}}},
		},
	}
}

func TestService_HandleSubscriptionEvents(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Prices{Pro: "price_pro", Team: "price_team"}, nil, nil, nil)
	scope := OrganizationScope(uuid.New())
	ctx := context.Background()

	_, _ = svc.ActivePlan(ctx, scope) // cache free

	sub := map[string]interface{}{
		"id":                   "sub_123",
		"customer":             "cus_123",
		"status":               "active",
		"current_period_end":   1735689600,
		"cancel_at_period_end": false,
		"metadata":             scope.Metadata(models.PlanTeam),
		"items": map[string]interface{}{
			"object": "list",
			"data":   []interface{}{map[string]interface{}{"id": "si_1", "price": map[string]interface{}{"id": "price_team"}}},
		},
	}
	require.NoError(t, svc.HandleEvent(ctx, event(t, "customer.subscription.updated", sub)))

	got := store.subs[scope.Key()]
	require.NotNil(t, got)
	assert.Equal(t, models.PlanTeam, got.Plan)
	assert.Equal(t, "cus_123", got.StripeCustomerID)
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1735689600, 0).UTC(), *got.CurrentPeriodEnd)

	plan, err := svc.ActivePlan(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, models.PlanTeam, plan, "webhook must invalidate the cached plan")

	// deletion without metadata is matched by subscription id
	delete(sub, "metadata")
	require.NoError(t, svc.HandleEvent(ctx, event(t, "customer.subscription.deleted", sub)))
	assert.Equal(t, "canceled", store.subs[scope.Key()].Status)
	assert.Equal(t, models.PlanFree, store.subs[scope.Key()].Plan)

	require.NoError(t, svc.HandleEvent(ctx, event(t, "invoice.paid", map[string]string{"id": "in_1"})))
}

func TestService_HandleCheckoutCompleted(t *testing.T) {
	store := newMemStore()
	rec := &recorder{}
	svc := NewService(store, Prices{Pro: "price_pro"}, rec, nil, nil)
	scope := UserScope(uuid.New())

	cs := map[string]interface{}{
		"id":           "cs_1",
		"customer":     "cus_9",
		"subscription": "sub_9",
		"metadata":     scope.Metadata(models.PlanPro),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event(t, "checkout.session.completed", cs)))
	got := store.subs[scope.Key()]
	require.NotNil(t, got)
	assert.Equal(t, "cus_9", got.StripeCustomerID)
	require.NotNil(t, got.StripeSubscriptionID)
	assert.Equal(t, "sub_9", *got.StripeSubscriptionID)
	// the plan is granted by the subscription event, not by checkout
	assert.Equal(t, models.PlanFree, got.Plan)
	assert.Equal(t, "incomplete", got.Status)
	assert.Empty(t, rec.actions)
}

func TestService_WebhookReplayAndOrdering(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Prices{Pro: "price_pro"}, nil, nil, nil)
	scope := UserScope(uuid.New())
	meta := scope.Metadata(models.PlanPro)
	ctx := context.Background()
	const periodEnd = 1767225600

	checkout := map[string]interface{}{"id": "cs_1", "customer": "cus_1", "subscription": "sub_1", "metadata": meta}
	created := subscriptionObject("sub_1", "active", "price_pro", periodEnd, meta)

	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "customer.subscription.created", created, 100)))
	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "checkout.session.completed", checkout, 101)))

	got := store.subs[scope.Key()]
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, models.PlanPro, got.Plan)
	require.NotNil(t, got.CurrentPeriodEnd, "checkout must not wipe the period end")
	assert.Equal(t, time.Unix(periodEnd, 0).UTC(), *got.CurrentPeriodEnd)

	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "customer.subscription.deleted", created, 200)))
	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "checkout.session.completed", checkout, 101)))
	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "customer.subscription.updated", created, 150)))

	got = store.subs[scope.Key()]
	assert.Equal(t, "canceled", got.Status)
	assert.Equal(t, models.PlanFree, got.Plan)
	plan, err := svc.ActivePlan(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, plan)

	// a new subscription replaces the cancelled one
	renewed := subscriptionObject("sub_2", "active", "price_pro", periodEnd, meta)
	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "customer.subscription.created", renewed, 300)))
	assert.Equal(t, "sub_2", *store.subs[scope.Key()].StripeSubscriptionID)
	assert.Equal(t, "active", store.subs[scope.Key()].Status)

	// late events for the old subscription leave the active one alone
	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "customer.subscription.deleted", created, 400)))
	require.NoError(t, svc.HandleEvent(ctx, eventAt(t, "checkout.session.completed", checkout, 401)))
	got = store.subs[scope.Key()]
	assert.Equal(t, "sub_2", *got.StripeSubscriptionID)
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, models.PlanPro, got.Plan)
}

func TestStale(t *testing.T) {
	sub1 := "sub_1"
	last := time.Unix(200, 0).UTC()
	active := &models.Subscription{StripeSubscriptionID: &sub1, Status: "active", LastEventAt: &last}
	canceled := &models.Subscription{StripeSubscriptionID: &sub1, Status: "canceled", LastEventAt: &last}

	assert.False(t, stale(nil, "sub_1", last))
	assert.True(t, stale(active, "sub_1", time.Unix(100, 0)))
	assert.False(t, stale(active, "sub_1", time.Unix(200, 0)))
	assert.False(t, stale(active, "sub_1", time.Time{}))
	assert.True(t, stale(active, "sub_2", time.Unix(300, 0)))
	assert.False(t, stale(canceled, "sub_2", time.Unix(300, 0)))
	assert.True(t, stale(canceled, "sub_2", time.Unix(100, 0)))
}

type recorder struct{ actions []string }

func (r *recorder) Record(_ context.Context, e *models.ActivityLog) error {
	r.actions = append(r.actions, e.Action)
	return nil
}

func TestRepository_CountDocuments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE user_id = \\$1 AND organization_id IS NULL").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := NewRepository(mock).CountDocuments(context.Background(), UserScope(userID))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetForScopeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	mock.ExpectQuery("FROM subscriptions WHERE organization_id = \\$1").
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = NewRepository(mock).GetForScope(context.Background(), OrganizationScope(orgID))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertStaleEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	id := "sub_1"
	at := time.Unix(100, 0).UTC()
	mock.ExpectQuery("INSERT INTO subscriptions .+ DO UPDATE SET .+ WHERE EXCLUDED.last_event_at IS NULL").
		WithArgs(userID, "cus_1", &id, "price_pro", "pro", "active", (*time.Time)(nil), false, &at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	sub := &models.Subscription{StripeCustomerID: "cus_1", StripeSubscriptionID: &id, StripePriceID: "price_pro",
		Plan: models.PlanPro, Status: "active", LastEventAt: &at}
	err = NewRepository(mock).Upsert(context.Background(), UserScope(userID), sub)
	assert.ErrorIs(t, err, ErrStaleEvent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LinkSubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	id := "sub_1"
	mock.ExpectExec("INSERT INTO subscriptions \\(organization_id, stripe_customer_id, stripe_subscription_id\\)").
		WithArgs(orgID, "cus_1", &id).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewRepository(mock).LinkSubscription(context.Background(), OrganizationScope(orgID), "cus_1", &id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeGateway struct {
	customers int
	checkout  CheckoutRequest
}

func (g *fakeGateway) CreateCustomer(context.Context, string, string, map[string]string) (string, error) {
	g.customers++
	return "cus_new", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (string, error) {
	g.checkout = req
	return "https://checkout.stripe.test/s", nil
}

func (g *fakeGateway) CreatePortalSession(context.Context, string, string) (string, error) {
	return "https://billing.stripe.test/p", nil
}

func (g *fakeGateway) ConstructEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("unused")
}

type fakeProfiles struct {
	profile *models.Profile
}

func (f *fakeProfiles) Get(context.Context, uuid.UUID) (*models.Profile, error) { return f.profile, nil }

func (f *fakeProfiles) SetStripeCustomerID(_ context.Context, _ uuid.UUID, id string) error {
	f.profile.StripeCustomerID = &id
	return nil
}

func billingRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, userID) })
	r.GET("/api/billing", h.Get)
	r.POST("/api/billing/checkout", h.Checkout)
	r.POST("/api/billing/portal", h.Portal)
	r.POST("/api/webhooks/stripe", h.Webhook)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Checkout(t *testing.T) {
	userID, joined := uuid.New(), uuid.New()
	store := newMemStore()
	svc := NewService(store, Prices{Pro: "price_pro", Team: "price_team"}, nil, nil, nil)
	gw := &fakeGateway{}
	profiles := &fakeProfiles{profile: &models.Profile{ID: userID, Email: "kai@example.com"}}
	r := billingRouter(NewHandler(svc, gw, profiles, fakeRoles{joined: models.OrgRoleAdmin}, "https://app.test", nil), userID)

	w := post(r, "/api/billing/checkout", `{"plan":"pro"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "https://checkout.stripe.test/s")
	assert.Equal(t, "price_pro", gw.checkout.PriceID)
	assert.Equal(t, "cus_new", gw.checkout.CustomerID)
	assert.Equal(t, "user", gw.checkout.Metadata["scope_kind"])
	require.NotNil(t, profiles.profile.StripeCustomerID)

	// existing customer is reused
	post(r, "/api/billing/checkout", `{"plan":"pro"}`)
	assert.Equal(t, 1, gw.customers)

	assert.Equal(t, http.StatusBadRequest, post(r, "/api/billing/checkout", `{"plan":"team"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/billing/checkout", `{"plan":"gold"}`).Code)
	assert.Equal(t, http.StatusForbidden, post(r, "/api/billing/checkout", `{"plan":"team","organization_id":"`+joined.String()+`"}`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/api/billing/checkout", `{"plan":"team","organization_id":"`+uuid.NewString()+`"}`).Code)
}

func TestHandler_PortalAndOverview(t *testing.T) {
	userID := uuid.New()
	store := newMemStore()
	svc := NewService(store, Prices{Pro: "price_pro"}, nil, nil, nil)
	profiles := &fakeProfiles{profile: &models.Profile{ID: userID}}
	r := billingRouter(NewHandler(svc, &fakeGateway{}, profiles, fakeRoles{}, "https://app.test", nil), userID)

	assert.Equal(t, http.StatusNotFound, post(r, "/api/billing/portal", "").Code)
	cus := "cus_1"
	profiles.profile.StripeCustomerID = &cus
	assert.Equal(t, http.StatusOK, post(r, "/api/billing/portal", "").Code)

	store.counts[UserScope(userID).Key()] = 3
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/billing", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data Overview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.PlanFree, body.Data.Plan)
	assert.Equal(t, "none", body.Data.Status)
	assert.Equal(t, Usage{Documents: 3, Limit: 25}, body.Data.Usage)
}

func TestHandler_PortalReadsChunkedBody(t *testing.T) {
	userID := uuid.New()
	svc := NewService(newMemStore(), Prices{Pro: "price_pro"}, nil, nil, nil)
	cus := "cus_1"
	profiles := &fakeProfiles{profile: &models.Profile{ID: userID, StripeCustomerID: &cus}}
	r := billingRouter(NewHandler(svc, &fakeGateway{}, profiles, fakeRoles{}, "https://app.test", nil), userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/billing/portal", strings.NewReader(`{"organization_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/billing/portal", strings.NewReader(""))
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_WebhookRejectsBadSignature(t *testing.T) {
	svc := NewService(newMemStore(), Prices{}, nil, nil, nil)
	h := NewHandler(svc, NewStripeGateway("sk_test_x", "whsec_test"), &fakeProfiles{}, fakeRoles{}, "", nil)
	r := billingRouter(h, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_NotConfigured(t *testing.T) {
	svc := NewService(newMemStore(), Prices{}, nil, nil, nil)
	r := billingRouter(NewHandler(svc, nil, &fakeProfiles{}, fakeRoles{}, "", nil), uuid.New())
	assert.Equal(t, http.StatusServiceUnavailable, post(r, "/api/billing/checkout", `{"plan":"pro"}`).Code)
}
