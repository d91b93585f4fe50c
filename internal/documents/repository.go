package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/database"
)

var ErrNotFound = errors.New("document not found")

// maxFilterScan bounds how many rows a text-filtered listing reads before filtering.
const maxFilterScan = 1000

// Repository handles documents persistence. Reads taking a user id are scoped to what
// that user may see.
type Repository struct {
	db database.DB
}

// NewRepository creates a documents repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const docColumns = `d.id, d.user_id, d.organization_id, d.title, d.category, d.summary, d.tags, d.content,
	d.file_name, d.file_path, d.file_size, d.mime_type, d.page_count, d.status,
	d.is_favorite, d.is_pinned, d.is_archived, d.share_token, d.share_expires_at,
	d.embedding IS NOT NULL, d.created_at, d.updated_at`

// listColumns matches docColumns but leaves content out of listings.
var listColumns = strings.Replace(docColumns, "d.content", "''", 1)

// visibleTo restricts d to personal documents of $n and documents of organizations $n belongs to.
func visibleTo(n int) string {
	return fmt.Sprintf(`((d.organization_id IS NULL AND d.user_id = $%[1]d)
		OR d.organization_id IN (SELECT organization_id FROM organization_members WHERE user_id = $%[1]d))`, n)
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	var status string
	err := row.Scan(&d.ID, &d.UserID, &d.OrganizationID, &d.Title, &d.Category, &d.Summary, &d.Tags, &d.Content,
		&d.FileName, &d.FilePath, &d.FileSize, &d.MIMEType, &d.PageCount, &status,
		&d.IsFavorite, &d.IsPinned, &d.IsArchived, &d.ShareToken, &d.ShareExpiresAt,
		&d.HasEmbedding, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Status = models.DocumentStatus(status)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

// Create inserts a document. A zero ID is generated.
func (r *Repository) Create(ctx context.Context, d *models.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DocumentProcessing
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	const q = `INSERT INTO documents (id, user_id, organization_id, title, category, summary, tags, content,
			file_name, file_path, file_size, mime_type, page_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, d.ID, d.UserID, d.OrganizationID, d.Title, d.Category, d.Summary, d.Tags, d.Content,
		d.FileName, d.FilePath, d.FileSize, d.MIMEType, d.PageCount, string(d.Status)).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID returns a document without scoping. Only for background jobs and operators.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return scanDocument(r.db.QueryRow(ctx, `SELECT `+docColumns+` FROM documents d WHERE d.id = $1`, id))
}

// GetVisible returns a document the user may see, or ErrNotFound.
func (r *Repository) GetVisible(ctx context.Context, id, userID uuid.UUID) (*models.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents d WHERE d.id = $1 AND ` + visibleTo(2)
	return scanDocument(r.db.QueryRow(ctx, q, id, userID))
}

// GetByShareToken returns the document published under token.
func (r *Repository) GetByShareToken(ctx context.Context, token string) (*models.Document, error) {
	return scanDocument(r.db.QueryRow(ctx, `SELECT `+docColumns+` FROM documents d WHERE d.share_token = $1`, token))
}

// ListFilter selects documents for listing.
type ListFilter struct {
	UserID         uuid.UUID
	OrganizationID *uuid.UUID
	Category       string
	Favorite       *bool
	Pinned         *bool
	Archived       bool
	Query          string
	Sort           string
	Limit          int
	Offset         int
}

var sortOrders = map[string]string{
	"updated": "d.updated_at DESC",
	"created": "d.created_at DESC",
	"title":   "lower(d.title) ASC",
}

// List returns the page of documents matching f, pinned first. The text query is applied
// with FilterDocuments before paging.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Document, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.OrganizationID != nil {
		where = append(where, "d.organization_id = "+arg(*f.OrganizationID))
	} else {
		where = append(where, "d.organization_id IS NULL AND d.user_id = "+arg(f.UserID))
	}
	where = append(where, "d.is_archived = "+arg(f.Archived))
	if f.Category != "" {
		where = append(where, "d.category = "+arg(f.Category))
	}
	if f.Favorite != nil {
		where = append(where, "d.is_favorite = "+arg(*f.Favorite))
	}
	if f.Pinned != nil {
		where = append(where, "d.is_pinned = "+arg(*f.Pinned))
	}
	order, ok := sortOrders[f.Sort]
	if !ok {
		order = sortOrders["updated"]
	}
	filtering := strings.TrimSpace(f.Query) != ""
	q := `SELECT ` + listColumns + ` FROM documents d WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY d.is_pinned DESC, ` + order
	if filtering {
		q += ` LIMIT ` + arg(maxFilterScan)
	} else {
		q += ` LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	list := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !filtering {
		return list, nil
	}
	list = FilterDocuments(list, f.Query)
	if f.Offset >= len(list) {
		return []models.Document{}, nil
	}
	list = list[f.Offset:]
	if f.Limit > 0 && len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return list, nil
}

// Changes are the editable document fields; nil leaves a field unchanged.
type Changes struct {
	Title    *string
	Category *string
	Summary  *string
	Tags     []string
}

// Update applies changes and returns the document.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, ch Changes) (*models.Document, error) {
	const q = `UPDATE documents d SET
			title = COALESCE($2, d.title),
			category = COALESCE($3, d.category),
			summary = COALESCE($4, d.summary),
			tags = COALESCE($5, d.tags),
			updated_at = NOW()
		WHERE d.id = $1
		RETURNING ` + docColumns
	return scanDocument(r.db.QueryRow(ctx, q, id, ch.Title, ch.Category, ch.Summary, ch.Tags))
}

// Flag is a boolean document attribute toggled by the owner.
type Flag string

const (
	FlagFavorite Flag = "favorite"
	FlagPinned   Flag = "pin"
	FlagArchived Flag = "archive"
)

var flagColumns = map[Flag]string{
	FlagFavorite: "is_favorite",
	FlagPinned:   "is_pinned",
	FlagArchived: "is_archived",
}

// SetFlag sets one boolean attribute.
func (r *Repository) SetFlag(ctx context.Context, id uuid.UUID, flag Flag, value bool) error {
	col, ok := flagColumns[flag]
	if !ok {
		return fmt.Errorf("unknown flag %q", flag)
	}
	tag, err := r.db.Exec(ctx, `UPDATE documents SET `+col+` = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", col, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetShare publishes the document under token until expiresAt.
func (r *Repository) SetShare(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE documents SET share_token = $2, share_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearShare revokes the share link.
func (r *Repository) ClearShare(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE documents SET share_token = NULL, share_expires_at = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear share: %w", err)
	}
	return nil
}

// PurgeExpiredShares clears share links that expired before now.
func (r *Repository) PurgeExpiredShares(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE documents SET share_token = NULL, share_expires_at = NULL
		WHERE share_expires_at IS NOT NULL AND share_expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge shares: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a document row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkProcessing resets a document for another processing run.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE documents SET status = 'processing', updated_at = NOW() WHERE id = $1`, id)
	return err
}

// Analysis is the result of AI processing written back to a document.
type Analysis struct {
	Title     string
	Category  string
	Summary   string
	Tags      []string
	Embedding []float32
}

// MarkReady stores the analysis and marks the document ready. An empty title keeps the current one.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, a Analysis) error {
	var embedding interface{}
	if len(a.Embedding) > 0 {
		embedding = pgvector.NewVector(a.Embedding)
	}
	var title *string
	if a.Title != "" {
		title = &a.Title
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	const q = `UPDATE documents SET
			title = COALESCE($2, title),
			category = $3,
			summary = $4,
			tags = $5,
			embedding = $6::vector,
			status = 'ready',
			updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, title, a.Category, a.Summary, tags, embedding)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed marks processing as failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE documents SET status = 'failed', updated_at = NOW() WHERE id = $1`, id)
	return err
}

// SetEmbedding replaces only the embedding.
func (r *Repository) SetEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := r.db.Exec(ctx, `UPDATE documents SET embedding = $2::vector WHERE id = $1`, id, pgvector.NewVector(vec))
	return err
}

// Embedding returns the stored embedding, or ErrNotFound when there is none.
func (r *Repository) Embedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var v pgvector.Vector
	err := r.db.QueryRow(ctx, `SELECT embedding FROM documents WHERE id = $1 AND embedding IS NOT NULL`, id).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load embedding: %w", err)
	}
	return v.Slice(), nil
}

// Match runs match_documents for the personal scope of userID, or orgID when set.
func (r *Repository) Match(ctx context.Context, vec []float32, threshold float64, count int, userID uuid.UUID, orgID *uuid.UUID) ([]models.DocumentMatch, error) {
	const q = `SELECT id, title, summary, category, similarity FROM match_documents($1::vector, $2, $3, $4, $5)`
	rows, err := r.db.Query(ctx, q, pgvector.NewVector(vec), threshold, count, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.DocumentMatch, 0, count)
	for rows.Next() {
		var m models.DocumentMatch
		if err := rows.Scan(&m.ID, &m.Title, &m.Summary, &m.Category, &m.Similarity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PendingEmbedding is a ready document without an embedding.
type PendingEmbedding struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// ListMissingEmbeddings returns ready documents lacking an embedding, oldest first.
func (r *Repository) ListMissingEmbeddings(ctx context.Context, limit int) ([]PendingEmbedding, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id FROM documents
		WHERE embedding IS NULL AND status = 'ready'
		ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list missing embeddings: %w", err)
	}
	defer rows.Close()
	var out []PendingEmbedding
	for rows.Next() {
		var p PendingEmbedding
		if err := rows.Scan(&p.ID, &p.UserID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountByStatus returns document counts per processing status.
func (r *Repository) CountByStatus(ctx context.Context) (map[models.DocumentStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()
	out := make(map[models.DocumentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[models.DocumentStatus(status)] = n
	}
	return out, rows.Err()
}
