package middleware

import (
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docuflow/backend/pkg/response"
)

// Internal logs err, reports it to Sentry when enabled and sends a 500 with msg.
func Internal(c *gin.Context, logger *zap.Logger, msg string, err error) {
	_ = c.Error(err)
	if logger != nil {
		logger.Error(msg,
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(ContextRequestID)),
		)
	}
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("route", c.FullPath())
			scope.SetTag("request_id", c.GetString(ContextRequestID))
			if id, ok := OptionalUserID(c); ok {
				scope.SetUser(sentry.User{ID: id.String()})
			}
			hub.CaptureException(err)
		})
	}
	response.Internal(c, msg)
}
