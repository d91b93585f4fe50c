package activity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, docID, newID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO activity_logs").
		WithArgs(userID, pgxmock.AnyArg(), models.ActionDocumentCreated, models.EntityDocument, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(newID, now))

	e := Entry(userID, nil, models.ActionDocumentCreated, models.EntityDocument, &docID, Meta{"title": "Q1"})
	require.NoError(t, NewRepository(mock).Record(context.Background(), e))
	assert.Equal(t, newID, e.ID)
	assert.JSONEq(t, `{"title":"Q1"}`, string(e.Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListPersonal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "user_id", "organization_id", "action", "entity_type", "entity_id", "metadata", "created_at"}).
		AddRow(uuid.New(), userID, (*uuid.UUID)(nil), models.ActionAPIKeyCreated, models.EntityAPIKey, (*uuid.UUID)(nil), []byte(`{}`), time.Now())
	mock.ExpectQuery("FROM activity_logs WHERE user_id = \\$1 AND organization_id IS NULL").
		WithArgs(userID, 20).
		WillReturnRows(rows)

	list, err := NewRepository(mock).ListPersonal(context.Background(), userID, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ActionAPIKeyCreated, list[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeLister struct {
	org      []models.ActivityLog
	personal []models.ActivityLog
	limit    int
}

func (f *fakeLister) ListForOrganization(_ context.Context, _ uuid.UUID, limit int) ([]models.ActivityLog, error) {
	f.limit = limit
	return f.org, nil
}

func (f *fakeLister) ListPersonal(_ context.Context, _ uuid.UUID, limit int) ([]models.ActivityLog, error) {
	f.limit = limit
	return f.personal, nil
}

type fakeMembers struct {
	member bool
	err    error
}

func (f fakeMembers) IsMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return f.member, f.err
}

type fakeLocales string

func (f fakeLocales) Locale(context.Context, uuid.UUID) (string, error) { return string(f), nil }

func setup(h *Handler, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, userID) })
	r.GET("/api/activity", h.List)
	return r
}

func TestHandler_List(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{
		personal: []models.ActivityLog{{ID: uuid.New(), Action: models.ActionDocumentCreated, CreatedAt: now.Add(-3 * time.Hour)}},
		org:      []models.ActivityLog{{ID: uuid.New(), Action: models.ActionMemberAdded, CreatedAt: now.Add(-30 * time.Second)}},
	}

	t.Run("personal feed localized", func(t *testing.T) {
		h := NewHandler(lister, fakeMembers{}, fakeLocales("de"), nil)
		h.now = func() time.Time { return now }
		w := httptest.NewRecorder()
		setup(h, userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity?limit=500", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Data []models.ActivityLog `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "vor 3 Stunden", body.Data[0].RelativeTime)
		assert.Equal(t, 100, lister.limit)
	})

	t.Run("organization feed for members", func(t *testing.T) {
		h := NewHandler(lister, fakeMembers{member: true}, fakeLocales(""), nil)
		h.now = func() time.Time { return now }
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/activity?organization_id="+uuid.NewString(), nil)
		req.Header.Set("Accept-Language", "fr-FR")
		setup(h, userID).ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "à l'instant")
	})

	t.Run("non-member gets 404", func(t *testing.T) {
		h := NewHandler(lister, fakeMembers{member: false}, nil, nil)
		w := httptest.NewRecorder()
		setup(h, userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity?organization_id="+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad organization id", func(t *testing.T) {
		h := NewHandler(lister, fakeMembers{}, nil, nil)
		w := httptest.NewRecorder()
		setup(h, userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity?organization_id=x", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("membership lookup failure", func(t *testing.T) {
		h := NewHandler(lister, fakeMembers{err: errors.New("db down")}, nil, nil)
		w := httptest.NewRecorder()
		setup(h, userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity?organization_id="+uuid.NewString(), nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
