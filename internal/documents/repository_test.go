package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/backend/internal/models"
)

var docFields = []string{"id", "user_id", "organization_id", "title", "category", "summary", "tags", "content",
	"file_name", "file_path", "file_size", "mime_type", "page_count", "status",
	"is_favorite", "is_pinned", "is_archived", "share_token", "share_expires_at",
	"has_embedding", "created_at", "updated_at"}

func addDocRow(rows *pgxmock.Rows, id, userID uuid.UUID, title string, tags []string) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(id, userID, (*uuid.UUID)(nil), title, "report", "", tags, "",
		"", "", int64(0), "text/plain", 0, "ready",
		false, false, false, (*string)(nil), (*time.Time)(nil),
		false, now, now)
}

func TestRepository_GetVisibleNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, userID := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM documents d WHERE d.id = \\$1").
		WithArgs(id, userID).
		WillReturnRows(pgxmock.NewRows(docFields))

	_, err = NewRepository(mock).GetVisible(context.Background(), id, userID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListAppliesTextFilterBeforePaging(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	rows := pgxmock.NewRows(docFields)
	addDocRow(rows, uuid.New(), userID, "Budget 2023", []string{"finance"})
	addDocRow(rows, uuid.New(), userID, "Holiday plan", nil)
	addDocRow(rows, uuid.New(), userID, "Budget 2024", []string{"finance"})
	mock.ExpectQuery("SELECT .+ FROM documents d WHERE d.organization_id IS NULL").
		WithArgs(userID, false, maxFilterScan).
		WillReturnRows(rows)

	list, err := NewRepository(mock).List(context.Background(), ListFilter{
		UserID: userID, Query: "budget", Limit: 1, Offset: 1,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Budget 2024", list[0].Title)
	assert.Equal(t, models.DocumentReady, list[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListPagesInSQL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, orgID := uuid.New(), uuid.New()
	fav := true
	rows := pgxmock.NewRows(docFields)
	addDocRow(rows, uuid.New(), userID, "Minutes", nil)
	mock.ExpectQuery("d.organization_id = \\$1 AND d.is_archived = \\$2 AND d.category = \\$3 AND d.is_favorite = \\$4 ORDER BY d.is_pinned DESC, lower\\(d.title\\) ASC LIMIT \\$5 OFFSET \\$6").
		WithArgs(orgID, false, "report", true, 20, 40).
		WillReturnRows(rows)

	list, err := NewRepository(mock).List(context.Background(), ListFilter{
		UserID: userID, OrganizationID: &orgID, Category: "report", Favorite: &fav, Sort: "title", Limit: 20, Offset: 40,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{}, list[0].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetFlag(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE documents SET is_pinned = \\$2").
		WithArgs(id, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE documents SET is_archived = \\$2").
		WithArgs(id, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock)
	require.NoError(t, repo.SetFlag(context.Background(), id, FlagPinned, true))
	assert.ErrorIs(t, repo.SetFlag(context.Background(), id, FlagArchived, true), ErrNotFound)
	assert.Error(t, repo.SetFlag(context.Background(), id, Flag("starred"), true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkReady(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE documents SET").
		WithArgs(id, (*string)(nil), "invoice", "An invoice.", []string{"acme"}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewRepository(mock).MarkReady(context.Background(), id, Analysis{
		Category: "invoice", Summary: "An invoice.", Tags: []string{"acme"}, Embedding: []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_PurgeExpiredShares(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectExec("UPDATE documents SET share_token = NULL").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewRepository(mock).PurgeExpiredShares(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListMissingEmbeddingsOnlyReady(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, userID := uuid.New(), uuid.New()
	mock.ExpectQuery("WHERE embedding IS NULL AND status = 'ready' ORDER BY created_at LIMIT \\$1").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id"}).AddRow(id, userID))

	got, err := NewRepository(mock).ListMissingEmbeddings(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []PendingEmbedding{{ID: id, UserID: userID}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
