package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/backend/pkg/i18n"
)

// LocaleLookup returns a user's stored locale.
type LocaleLookup interface {
	Locale(ctx context.Context, userID uuid.UUID) (string, error)
}

// CallerLocale negotiates the caller's locale from their profile, then Accept-Language.
func CallerLocale(c *gin.Context, locales LocaleLookup) string {
	stored := ""
	if locales != nil {
		if id, ok := OptionalUserID(c); ok {
			stored, _ = locales.Locale(c.Request.Context(), id)
		}
	}
	return i18n.Negotiate(stored, c.GetHeader("Accept-Language"))
}
