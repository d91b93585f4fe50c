package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/ratelimit"
	"github.com/docuflow/backend/pkg/response"
)

// RateLimit applies limiter per authenticated user, or per client IP for anonymous callers.
// Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := OptionalUserID(c); ok {
			key = "user:" + id.String()
		}
		key += ":" + c.FullPath()

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
			}
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			wait := res.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			m.RateLimited(c.FullPath())
			response.TooManyRequests(c, "rate limit exceeded, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
