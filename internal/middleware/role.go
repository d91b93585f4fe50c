package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/pkg/response"
)

// RequireSource allows only callers authenticated through one of the given sources.
// API key management, for example, requires a browser session.
func RequireSource(sources ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, s := range sources {
		allowed[s] = struct{}{}
	}
	return func(c *gin.Context) {
		if !HasIdentity(c) {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[c.GetString(ContextAuthSource)]; !ok {
			response.Forbidden(c, "this action requires a signed-in session")
			c.Abort()
			return
		}
		c.Next()
	}
}
