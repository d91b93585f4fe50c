// Package notifications stores in-app notifications and pushes them to connected clients.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/i18n"
)

// EventNotification is the realtime event name for new notifications.
const EventNotification = "notification"

// Notice describes a notification before localization.
type Notice struct {
	UserID     uuid.UUID
	Type       string
	Link       string
	TitleKey   string
	MessageKey string
	Args       []interface{}
}

// Notifier creates notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notice) (*models.Notification, error)
}

// Publisher delivers an event to a user's open connections.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

// Creator persists notifications.
type Creator interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Service localizes, stores and publishes notifications.
type Service struct {
	repo      Creator
	locales   middleware.LocaleLookup
	publisher Publisher
	logger    *zap.Logger
}

// NewService creates a notification service. publisher may be nil.
func NewService(repo Creator, locales middleware.LocaleLookup, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, locales: locales, publisher: publisher, logger: logger}
}

// Notify renders n in the recipient's locale, stores it and pushes it in realtime.
// Push failures are logged; the stored notification is still returned.
func (s *Service) Notify(ctx context.Context, n Notice) (*models.Notification, error) {
	locale := i18n.Default
	if s.locales != nil {
		if l, err := s.locales.Locale(ctx, n.UserID); err == nil {
			locale = i18n.Negotiate(l, "")
		}
	}
	out := &models.Notification{
		UserID:  n.UserID,
		Type:    n.Type,
		Title:   i18n.T(locale, n.TitleKey),
		Message: i18n.T(locale, n.MessageKey, n.Args...),
		Link:    n.Link,
	}
	if err := s.repo.Create(ctx, out); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	out.RelativeTime = i18n.T(locale, i18n.KeyJustNow)
	if s.publisher != nil {
		if err := s.publisher.PublishToUser(ctx, n.UserID, EventNotification, out); err != nil {
			s.logger.Warn("publish notification", zap.String("user_id", n.UserID.String()), zap.Error(err))
		}
	}
	return out, nil
}

// Send calls Notify and logs failures. Used where a notification must not fail the caller.
func Send(ctx context.Context, n Notifier, logger *zap.Logger, notice Notice) {
	if n == nil {
		return
	}
	if _, err := n.Notify(ctx, notice); err != nil && logger != nil {
		logger.Warn("notify", zap.String("type", notice.Type), zap.String("user_id", notice.UserID.String()), zap.Error(err))
	}
}
