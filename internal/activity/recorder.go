// Package activity records and lists the audit trail.
package activity

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/models"
)

// Recorder persists activity entries.
type Recorder interface {
	Record(ctx context.Context, e *models.ActivityLog) error
}

// Meta is free-form entry metadata.
type Meta map[string]interface{}

// Entry builds an activity log entry.
func Entry(userID uuid.UUID, orgID *uuid.UUID, action, entityType string, entityID *uuid.UUID, meta Meta) *models.ActivityLog {
	e := &models.ActivityLog{
		UserID:         userID,
		OrganizationID: orgID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
	}
	if len(meta) > 0 {
		if raw, err := json.Marshal(meta); err == nil {
			e.Metadata = raw
		}
	}
	return e
}

// Log records e and only logs a warning on failure. Activity is best-effort.
func Log(ctx context.Context, rec Recorder, logger *zap.Logger, e *models.ActivityLog) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, e); err != nil && logger != nil {
		logger.Warn("record activity", zap.String("action", e.Action), zap.Error(err))
	}
}
