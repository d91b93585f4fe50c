package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/internal/models"
)

const (
	provisionedCacheSize = 10000
	provisionedCacheTTL  = 10 * time.Minute
)

// ProfileEnsurer creates the profile row of a session user if it is missing.
type ProfileEnsurer interface {
	Ensure(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error)
}

// EnsureProfile provisions the profile of session callers before any handler writes rows
// that reference it. Provisioned users are remembered for a few minutes.
func EnsureProfile(profiles ProfileEnsurer, logger *zap.Logger) gin.HandlerFunc {
	seen := expirable.NewLRU[uuid.UUID, struct{}](provisionedCacheSize, nil, provisionedCacheTTL)
	return func(c *gin.Context) {
		id, ok := OptionalUserID(c)
		if !ok || c.GetString(ContextAuthSource) != auth.SourceSession {
			c.Next()
			return
		}
		if _, ok := seen.Get(id); !ok {
			if _, err := profiles.Ensure(c.Request.Context(), id, UserEmail(c)); err != nil {
				Internal(c, logger, "failed to provision profile", err)
				c.Abort()
				return
			}
			seen.Add(id, struct{}{})
		}
		c.Next()
	}
}
