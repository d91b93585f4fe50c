package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver struct {
	id  *auth.Identity
	err error
}

func (s stubResolver) Resolve(*http.Request) (*auth.Identity, error) {
	return s.id, s.err
}

func newRouter(resolver IdentityResolver, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Authenticate(resolver))
	r.Use(extra...)
	ok := func(c *gin.Context) {
		uid, _ := OptionalUserID(c)
		c.String(http.StatusOK, uid.String())
	}
	r.GET("/health", ok)
	r.GET("/api/shared/:token", ok)
	r.GET("/api/documents", ok)
	r.GET("/api/api-keys", RequireSource(auth.SourceSession), ok)
	return r
}

func do(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()

	t.Run("anonymous public path", func(t *testing.T) {
		w := do(newRouter(stubResolver{}), "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	})

	t.Run("anonymous protected path", func(t *testing.T) {
		w := do(newRouter(stubResolver{}), "/api/documents")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "authentication required")
	})

	t.Run("invalid credentials on public path are ignored", func(t *testing.T) {
		w := do(newRouter(stubResolver{err: auth.ErrInvalidToken}), "/api/shared/abc")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uuid.Nil.String(), w.Body.String())
	})

	t.Run("invalid credentials on protected path", func(t *testing.T) {
		w := do(newRouter(stubResolver{err: auth.ErrInvalidToken}), "/api/documents")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("session", func(t *testing.T) {
		w := do(newRouter(stubResolver{id: &auth.Identity{UserID: userID, Source: auth.SourceSession}}), "/api/documents")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID.String(), w.Body.String())
	})

	t.Run("api key cannot manage keys", func(t *testing.T) {
		r := newRouter(stubResolver{id: &auth.Identity{UserID: userID, Source: auth.SourceAPIKey}})
		assert.Equal(t, http.StatusOK, do(r, "/api/documents").Code)
		assert.Equal(t, http.StatusForbidden, do(r, "/api/api-keys").Code)
	})
}

type fakeEnsurer struct {
	calls map[uuid.UUID]string
	err   error
}

func (f *fakeEnsurer) Ensure(_ context.Context, id uuid.UUID, email string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls[id] = email
	return &models.Profile{ID: id, Email: email}, nil
}

func TestEnsureProfile(t *testing.T) {
	userID := uuid.New()
	ensurer := &fakeEnsurer{calls: map[uuid.UUID]string{}}
	session := &auth.Identity{UserID: userID, Email: "new@example.com", Source: auth.SourceSession}

	r := newRouter(stubResolver{id: session}, EnsureProfile(ensurer, nil))
	assert.Equal(t, http.StatusOK, do(r, "/api/documents").Code)
	assert.Equal(t, "new@example.com", ensurer.calls[userID])

	// remembered after the first request
	delete(ensurer.calls, userID)
	assert.Equal(t, http.StatusOK, do(r, "/api/documents").Code)
	assert.Empty(t, ensurer.calls)

	keyUser := uuid.New()
	r = newRouter(stubResolver{id: &auth.Identity{UserID: keyUser, Source: auth.SourceAPIKey}}, EnsureProfile(ensurer, nil))
	assert.Equal(t, http.StatusOK, do(r, "/api/documents").Code)
	assert.NotContains(t, ensurer.calls, keyUser)

	r = newRouter(stubResolver{}, EnsureProfile(ensurer, nil))
	assert.Equal(t, http.StatusOK, do(r, "/health").Code)

	failing := &fakeEnsurer{err: errors.New("db down")}
	r = newRouter(stubResolver{id: session}, EnsureProfile(failing, nil))
	assert.Equal(t, http.StatusInternalServerError, do(r, "/api/documents").Code)
}

func TestRateLimit(t *testing.T) {
	userID := uuid.New()
	lim := ratelimit.NewMemory(2, time.Minute)
	r := newRouter(stubResolver{id: &auth.Identity{UserID: userID, Source: auth.SourceSession}}, RateLimit(lim, nil, nil))

	w := do(r, "/api/documents")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do(r, "/api/documents").Code)

	w = do(r, "/api/documents")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other routes have their own window.
	assert.Equal(t, http.StatusOK, do(r, "/health").Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := newRouter(stubResolver{}, RateLimit(failingLimiter{}, nil, nil))
	assert.Equal(t, http.StatusOK, do(r, "/health").Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://app.docuflow.io"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.docuflow.io")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.docuflow.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
