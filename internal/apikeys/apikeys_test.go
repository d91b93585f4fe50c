package apikeys

import (
	"context"
	"encoding/json"
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

	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
}

func TestRepository_CreateRespectsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, keyID := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("INSERT INTO api_keys").
		WithArgs(userID, "ci", "abc123", "hash", MaxActiveKeys).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(keyID, time.Now()))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("INSERT INTO api_keys").
		WithArgs(userID, "ci", "abc124", "hash", MaxActiveKeys).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectRollback()

	repo := NewRepository(mock)
	k := &models.APIKey{UserID: userID, Name: "ci", Prefix: "abc123", KeyHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), k))
	assert.Equal(t, keyID, k.ID)

	err = repo.Create(context.Background(), &models.APIKey{UserID: userID, Name: "ci", Prefix: "abc124", KeyHash: "hash"})
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByPrefixAndRevoke(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, userID := uuid.New(), uuid.New()
	revoked := time.Now()
	mock.ExpectQuery("FROM api_keys WHERE prefix = \\$1").
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "prefix", "key_hash", "last_used_at", "revoked_at", "created_at"}).
			AddRow(id, userID, "ci", "abc123", "hash", (*time.Time)(nil), &revoked, time.Now()))
	mock.ExpectExec("UPDATE api_keys SET revoked_at").
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock)
	k, err := repo.GetByPrefix(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, k.Active())
	assert.ErrorIs(t, repo.Revoke(context.Background(), userID, id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeStore struct {
	keys map[uuid.UUID]*models.APIKey
}

func (f *fakeStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	out := []models.APIKey{}
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, k *models.APIKey) error {
	active := 0
	for _, existing := range f.keys {
		if existing.UserID == k.UserID && existing.Active() {
			active++
		}
	}
	if active >= MaxActiveKeys {
		return ErrLimitReached
	}
	k.ID = uuid.New()
	k.CreatedAt = time.Now()
	cp := *k
	f.keys[k.ID] = &cp
	return nil
}

func (f *fakeStore) Revoke(_ context.Context, userID, id uuid.UUID) error {
	k, ok := f.keys[id]
	if !ok || k.UserID != userID || !k.Active() {
		return ErrNotFound
	}
	now := time.Now()
	k.RevokedAt = &now
	return nil
}

type fakeRecorder struct{ actions []string }

func (f *fakeRecorder) Record(_ context.Context, e *models.ActivityLog) error {
	f.actions = append(f.actions, e.Action)
	return nil
}

func router(h *Handler, userID uuid.UUID, source string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, &auth.Identity{UserID: userID, Source: source})
	})
	keys := r.Group("/api/api-keys", middleware.RequireSource(auth.SourceSession))
	keys.GET("", h.List)
	keys.POST("", h.Create)
	keys.DELETE("/:id", h.Revoke)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateReturnsKeyOnce(t *testing.T) {
	store := &fakeStore{keys: map[uuid.UUID]*models.APIKey{}}
	rec := &fakeRecorder{}
	userID := uuid.New()
	r := router(NewHandler(store, rec, nil), userID, auth.SourceSession)

	w := do(r, http.MethodPost, "/api/api-keys", `{"name":" deploy "}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Data CreatedKey `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "deploy", body.Data.Name)

	prefix, secret, ok := auth.ParseAPIKey(body.Data.Key)
	require.True(t, ok)
	assert.Equal(t, body.Data.Prefix, prefix)
	assert.True(t, utils.CheckSecret(secret, store.keys[body.Data.ID].KeyHash))
	assert.Equal(t, []string{models.ActionAPIKeyCreated}, rec.actions)

	w = do(r, http.MethodGet, "/api/api-keys", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), secret)
	assert.NotContains(t, w.Body.String(), "key_hash")
}

func TestHandler_CreateLimit(t *testing.T) {
	store := &fakeStore{keys: map[uuid.UUID]*models.APIKey{}}
	userID := uuid.New()
	for i := 0; i < MaxActiveKeys; i++ {
		require.NoError(t, store.Create(context.Background(), &models.APIKey{UserID: userID, Name: "k"}))
	}
	r := router(NewHandler(store, nil, nil), userID, auth.SourceSession)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/api-keys", `{"name":"one more"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/api-keys", `{"name":"   "}`).Code)
}

func TestHandler_Revoke(t *testing.T) {
	store := &fakeStore{keys: map[uuid.UUID]*models.APIKey{}}
	owner, other := uuid.New(), uuid.New()
	k := &models.APIKey{UserID: owner, Name: "ci"}
	require.NoError(t, store.Create(context.Background(), k))
	h := NewHandler(store, nil, nil)

	assert.Equal(t, http.StatusNotFound, do(router(h, other, auth.SourceSession), http.MethodDelete, "/api/api-keys/"+k.ID.String(), "").Code)
	assert.Equal(t, http.StatusNoContent, do(router(h, owner, auth.SourceSession), http.MethodDelete, "/api/api-keys/"+k.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(router(h, owner, auth.SourceSession), http.MethodDelete, "/api/api-keys/"+k.ID.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router(h, owner, auth.SourceSession), http.MethodDelete, "/api/api-keys/nope", "").Code)
}

func TestHandler_RequiresSession(t *testing.T) {
	store := &fakeStore{keys: map[uuid.UUID]*models.APIKey{}}
	r := router(NewHandler(store, nil, nil), uuid.New(), auth.SourceAPIKey)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/api-keys", `{"name":"x"}`).Code)
	assert.Empty(t, store.keys)
}
