package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextAuthSource is the key for how the caller authenticated (session or api_key).
	ContextAuthSource = "auth_source"
)

// IdentityResolver reads the caller identity from a request.
type IdentityResolver interface {
	Resolve(r *http.Request) (*auth.Identity, error)
}

// Authenticate resolves the caller on every request and rejects protected paths without one.
// Invalid credentials on public paths are ignored.
func Authenticate(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		id, err := resolver.Resolve(c.Request)
		protected := auth.IsProtectedPath(path)
		if err != nil && protected {
			response.Unauthorized(c, "invalid or expired credentials")
			c.Abort()
			return
		}
		if err == nil && id != nil {
			SetIdentity(c, id)
		}
		if protected && !HasIdentity(c) {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetIdentity stores the caller in the gin context.
func SetIdentity(c *gin.Context, id *auth.Identity) {
	c.Set(ContextUserID, id.UserID)
	c.Set(ContextUserEmail, id.Email)
	c.Set(ContextAuthSource, id.Source)
}

// HasIdentity reports whether an identity was resolved for the request.
func HasIdentity(c *gin.Context) bool {
	_, ok := c.Get(ContextUserID)
	return ok
}

// UserID returns the authenticated user id. It panics when called on a route without Authenticate.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}

// OptionalUserID returns the user id when the caller is authenticated.
func OptionalUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// UserEmail returns the email claim of the session, empty for API keys.
func UserEmail(c *gin.Context) string {
	return c.GetString(ContextUserEmail)
}
