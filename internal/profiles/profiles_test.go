package profiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
}

var profileCols = []string{"id", "email", "full_name", "locale", "stripe_customer_id", "created_at", "updated_at"}

func TestRepository_Ensure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO profiles").
		WithArgs(id, "ada@example.com").
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow(id, "ada@example.com", "", "en", (*string)(nil), now, now))

	p, err := NewRepository(mock).Ensure(context.Background(), id, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "en", p.Locale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LocaleMissingProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT locale FROM profiles").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	locale, err := NewRepository(mock).Locale(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "en", locale)
}

func TestRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM profiles WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewRepository(mock).Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeStore struct {
	profile *models.Profile
	ensured bool
	updated struct {
		name, locale *string
	}
}

func (f *fakeStore) Ensure(_ context.Context, id uuid.UUID, email string) (*models.Profile, error) {
	f.ensured = true
	f.profile = &models.Profile{ID: id, Email: email, Locale: "en"}
	return f.profile, nil
}

func (f *fakeStore) Get(context.Context, uuid.UUID) (*models.Profile, error) {
	if f.profile == nil {
		return nil, ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, name, locale *string) (*models.Profile, error) {
	f.updated.name, f.updated.locale = name, locale
	return &models.Profile{ID: id}, nil
}

func router(h *Handler, userID uuid.UUID, email string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserEmail, email)
	})
	r.GET("/api/me", h.Me)
	r.PATCH("/api/me", h.Update)
	return r
}

func TestHandler_Me(t *testing.T) {
	store := &fakeStore{}
	id := uuid.New()

	w := httptest.NewRecorder()
	router(NewHandler(store, nil), id, "ada@example.com").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.ensured)

	// API key callers carry no email and never create profiles.
	w = httptest.NewRecorder()
	router(NewHandler(&fakeStore{}, nil), id, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Update(t *testing.T) {
	store := &fakeStore{}
	r := router(NewHandler(store, nil), uuid.New(), "ada@example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/me", strings.NewReader(`{"full_name":"  Ada L ","locale":"es"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada L", *store.updated.name)
	assert.Equal(t, "es", *store.updated.locale)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/me", strings.NewReader(`{"locale":"jp"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Locale must be one of")
}
