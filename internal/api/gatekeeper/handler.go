// Package gatekeeper exposes route decisions, entitlement status and
// feature checks over HTTP.
package gatekeeper

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/app/http/middleware"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/session"
)

type Handler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewHandler(sessions *session.Manager, logger *zap.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

type DecisionDTO struct {
	Decision   string `json:"decision"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

func toDTO(d access.Decision) DecisionDTO {
	return DecisionDTO{Decision: d.Kind.String(), RedirectTo: d.Path}
}

// DecideRoute answers where the caller may go without any side effect.
// Anonymous callers are evaluated as signed out.
func (h *Handler) DecideRoute(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing path"})
		return
	}

	in := access.RouteInput{Initialized: true, Path: path}
	if id, ok := middleware.IdentityFrom(c); ok {
		hd, err := h.sessions.Acquire(c.Request.Context(), id)
		if hd == nil {
			h.logger.Warn("route decision: no session", zap.String("user_id", id.ID), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Session unavailable"})
			return
		}
		in = hd.Session.Snapshot().RouteInput(path)
	}

	c.JSON(http.StatusOK, toDTO(h.sessions.Gate().Decide(in)))
}

func (h *Handler) GetStatus(c *gin.Context) {
	hd, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	snap := hd.Session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  snap.Status,
		"checked": snap.Checked,
		"paywall": hd.Session.PaywallVisible(),
	})
}

// CheckFeature is the HTTP form of RequireFeature: 200 when allowed, 402
// with the paywall raised otherwise.
func (h *Handler) CheckFeature(c *gin.Context) {
	hd, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	feature := access.Feature(c.Param("feature"))
	allowed := hd.Session.RequireFeature(feature)
	code := http.StatusOK
	if !allowed {
		code = http.StatusPaymentRequired
	}
	c.JSON(code, gin.H{
		"feature": feature,
		"allowed": allowed,
		"paywall": hd.Session.PaywallVisible(),
	})
}

func (h *Handler) DismissPaywall(c *gin.Context) {
	hd, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	hd.Session.DismissPaywall()
	c.Status(http.StatusNoContent)
}

type navigateRequest struct {
	Path string `json:"path" binding:"required"`
}

// Navigate feeds the caller's current path to their navigation supervisor.
// navigated is true only for the first occurrence of a new redirect.
func (h *Handler) Navigate(c *gin.Context) {
	hd, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	d, navigated := hd.Navigation.Observe(hd.Session.Snapshot().RouteInput(req.Path))
	c.JSON(http.StatusOK, gin.H{
		"decision":    d.Kind.String(),
		"redirect_to": d.Path,
		"navigated":   navigated,
	})
}

// Logout tears down the caller's session. Token revocation is the auth
// provider's job.
func (h *Handler) Logout(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	released := h.sessions.Release(id.ID)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out", "session_closed": released})
}
