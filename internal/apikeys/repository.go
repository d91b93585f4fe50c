// Package apikeys manages personal API keys.
package apikeys

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/database"
)

// MaxActiveKeys is the number of unrevoked keys a user may hold.
const MaxActiveKeys = 10

var (
	ErrNotFound     = errors.New("api key not found")
	ErrLimitReached = errors.New("api key limit reached")
)

// Repository handles api_keys persistence.
type Repository struct {
	db database.TxDB
}

// NewRepository creates an API key repository.
func NewRepository(db database.TxDB) *Repository {
	return &Repository{db: db}
}

const keyColumns = `id, user_id, name, prefix, key_hash, last_used_at, revoked_at, created_at`

func scanKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.KeyHash, &k.LastUsedAt, &k.RevokedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

// GetByPrefix returns the key with prefix, revoked or not.
func (r *Repository) GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE prefix = $1`, prefix))
}

// TouchLastUsed records that the key authenticated a request.
func (r *Repository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	return err
}

// ListForUser returns the user's keys, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	rows, err := r.db.Query(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	list := make([]models.APIKey, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *k)
	}
	return list, rows.Err()
}

// Create inserts k unless the user already holds MaxActiveKeys active keys.
// Concurrent creates for one user are serialized on a transaction-scoped
// advisory lock so the count and the insert see the same key set.
func (r *Repository) Create(ctx context.Context, k *models.APIKey) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, k.UserID); err != nil {
		return fmt.Errorf("lock api keys: %w", err)
	}
	const q = `INSERT INTO api_keys (user_id, name, prefix, key_hash)
		SELECT $1, $2, $3, $4
		WHERE (SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND revoked_at IS NULL) < $5
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, q, k.UserID, k.Name, k.Prefix, k.KeyHash, MaxActiveKeys).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLimitReached
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Revoke revokes one of the user's active keys.
func (r *Repository) Revoke(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE api_keys SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
