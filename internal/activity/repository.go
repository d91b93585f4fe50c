package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/database"
)

// Repository handles activity_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an activity repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts an entry and fills its id and timestamp.
func (r *Repository) Record(ctx context.Context, e *models.ActivityLog) error {
	meta := e.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	const q = `INSERT INTO activity_logs (user_id, organization_id, action, entity_type, entity_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, e.UserID, e.OrganizationID, e.Action, e.EntityType, e.EntityID, []byte(meta)).
		Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, user_id, organization_id, action, entity_type, entity_id, metadata, created_at FROM activity_logs`

// ListForOrganization returns the newest entries of an organization.
func (r *Repository) ListForOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	return r.list(ctx, selectColumns+` WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2`, orgID, limit)
}

// ListPersonal returns the newest entries a user made outside any organization.
func (r *Repository) ListPersonal(ctx context.Context, userID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	return r.list(ctx, selectColumns+` WHERE user_id = $1 AND organization_id IS NULL ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.ActivityLog, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()
	list := make([]models.ActivityLog, 0)
	for rows.Next() {
		var e models.ActivityLog
		var meta []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.OrganizationID, &e.Action, &e.EntityType, &e.EntityID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Metadata = meta
		list = append(list, e)
	}
	return list, rows.Err()
}
