package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/apikeys"
	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/internal/billing"
	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/notifications"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/internal/profiles"
	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/response"
)

type handlers struct {
	profiles      *profiles.Handler
	organizations *organizations.Handler
	documents     *documents.Handler
	notifications *notifications.Handler
	activity      *activity.Handler
	billing       *billing.Handler
	apiKeys       *apikeys.Handler
	ws            gin.HandlerFunc
}

func registerRoutes(router *gin.Engine, h handlers, roles organizations.RoleLookup, limit gin.HandlerFunc, m *metrics.Metrics, logger *zap.Logger) {
	// Public
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/api/shared/:token", limit, h.documents.Shared)
	router.POST("/api/webhooks/stripe", h.billing.Webhook)

	// Protected API (session or API key; enforced by Authenticate)
	api := router.Group("/api")
	{
		api.GET("/me", h.profiles.Me)
		api.PATCH("/me", h.profiles.Update)

		// Organizations
		api.GET("/organizations", h.organizations.ListMine)
		api.POST("/organizations", h.organizations.Create)
		org := api.Group("/organizations/:id")
		org.GET("", organizations.RequireOrgPermission(roles, organizations.PermDocumentsRead, logger), h.organizations.Get)
		org.PATCH("", organizations.RequireOrgPermission(roles, organizations.PermOrgUpdate, logger), h.organizations.Update)
		org.DELETE("", organizations.RequireOrgPermission(roles, organizations.PermOrgDelete, logger), h.organizations.Delete)
		org.GET("/members", organizations.RequireOrgPermission(roles, organizations.PermDocumentsRead, logger), h.organizations.ListMembers)
		org.POST("/members", organizations.RequireOrgPermission(roles, organizations.PermMembersManage, logger), h.organizations.AddMember)
		org.PATCH("/members/:userId", organizations.RequireOrgPermission(roles, organizations.PermMembersManage, logger), h.organizations.UpdateMember)
		org.DELETE("/members/:userId", organizations.RequireOrgPermission(roles, organizations.PermMembersManage, logger), h.organizations.RemoveMember)
		org.POST("/leave", organizations.RequireOrgPermission(roles, organizations.PermDocumentsRead, logger), h.organizations.Leave)

		// Documents
		api.GET("/documents", h.documents.List)
		api.POST("/documents", h.documents.Create)
		api.POST("/documents/upload", limit, h.documents.Upload)
		api.GET("/documents/:id", h.documents.Get)
		api.PATCH("/documents/:id", h.documents.Update)
		api.DELETE("/documents/:id", h.documents.Delete)
		api.POST("/documents/:id/favorite", h.documents.SetFlag(documents.FlagFavorite))
		api.POST("/documents/:id/pin", h.documents.SetFlag(documents.FlagPinned))
		api.POST("/documents/:id/archive", h.documents.SetFlag(documents.FlagArchived))
		api.POST("/documents/:id/share", h.documents.Share)
		api.DELETE("/documents/:id/share", h.documents.Unshare)
		api.GET("/documents/:id/download", h.documents.Download)
		api.POST("/documents/:id/reprocess", limit, h.documents.Reprocess)
		api.GET("/documents/:id/similar", limit, h.documents.Similar)
		api.GET("/search", limit, h.documents.Search)

		// Notifications and activity
		api.GET("/notifications", h.notifications.List)
		api.POST("/notifications/read-all", h.notifications.MarkAllRead)
		api.POST("/notifications/:id/read", h.notifications.MarkRead)
		api.DELETE("/notifications/:id", h.notifications.Delete)
		api.GET("/activity", h.activity.List)

		// Billing
		api.GET("/billing", h.billing.Get)
		api.POST("/billing/checkout", h.billing.Checkout)
		api.POST("/billing/portal", h.billing.Portal)

		// API keys (browser session only)
		keys := api.Group("/api-keys", middleware.RequireSource(auth.SourceSession))
		keys.GET("", h.apiKeys.List)
		keys.POST("", h.apiKeys.Create)
		keys.DELETE("/:id", h.apiKeys.Revoke)
	}

	// WebSocket (token in query; resolved by Authenticate)
	router.GET("/ws", h.ws)
}
