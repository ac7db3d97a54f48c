package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	adminapi "wellness-gatekeeper/internal/api/admin"
	"wellness-gatekeeper/internal/api/gatekeeper"
	"wellness-gatekeeper/internal/api/plans"
	stripewebhooks "wellness-gatekeeper/internal/api/stripewebhook"
	"wellness-gatekeeper/internal/api/users"
	"wellness-gatekeeper/internal/app/http/middleware"
	"wellness-gatekeeper/internal/auth"
	"wellness-gatekeeper/internal/domain/access"
	domainusers "wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository"
	"wellness-gatekeeper/internal/session"
)

type Deps struct {
	Verifier auth.Verifier
	Sessions *session.Manager
	Profiles repository.ProfileStore
	Logger   *zap.Logger

	Users      *users.Handler
	Gatekeeper *gatekeeper.Handler
	Admin      *adminapi.Handler
	Plans      *plans.Handler
	Webhook    *stripewebhooks.Handler

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.POST("/webhook", d.Webhook.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.GET("/plans", d.Plans.ListPlans)
	public.GET("/access/route", middleware.OptionalAuth(d.Verifier), d.Gatekeeper.DecideRoute)

	// Authenticated
	authed := r.Group("/")
	authed.Use(
		middleware.AuthMiddleware(d.Verifier),
		middleware.WithSession(d.Sessions, d.Logger),
		middleware.SanitizeAndCleanInputMiddleware(),
	)
	authed.GET("/me", d.Users.GetCurrentUser)
	authed.PUT("/me/onboarding", d.Users.CompleteOnboarding)
	authed.GET("/me/export", middleware.RequireFeature(access.FeatureDataExport), d.Users.ExportData)

	authed.GET("/access/status", d.Gatekeeper.GetStatus)
	authed.GET("/access/features/:feature", d.Gatekeeper.CheckFeature)
	authed.POST("/access/paywall/dismiss", d.Gatekeeper.DismissPaywall)
	authed.POST("/access/navigate", d.Gatekeeper.Navigate)
	authed.POST("/logout", d.Gatekeeper.Logout)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(
		middleware.AuthMiddleware(d.Verifier),
		middleware.RequireRole(d.Profiles, domainusers.RoleAdmin, d.Logger),
	)
	admin.GET("/users", d.Admin.ListAllUsers)
	admin.GET("/users/:id", d.Admin.GetUserDetails)
	admin.GET("/stats", d.Admin.GetAdminStats)
	admin.POST("/sync-plans", d.Plans.SyncPlansFromStripe)
}
