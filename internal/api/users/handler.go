package users

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/app/http/middleware"
	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository"
	"wellness-gatekeeper/internal/session"
)

type Handler struct {
	profiles    repository.ProfileStore
	sessions    *session.Manager
	clock       clock.Clock
	trialLength time.Duration
	logger      *zap.Logger
}

func NewHandler(profiles repository.ProfileStore, sessions *session.Manager, clk clock.Clock, trialLength time.Duration, logger *zap.Logger) *Handler {
	return &Handler{profiles: profiles, sessions: sessions, clock: clk, trialLength: trialLength, logger: logger}
}

// GetCurrentUser reports identity, profile, billing and access for the
// caller. A caller without a profile gets a null profile, not a 404, so the
// client can route to onboarding.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	hd, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	now := h.clock.Now()
	snap := hd.Session.Snapshot()
	policy := access.ComputePolicy(now, snap.Profile, h.sessions.Catalog())

	c.JSON(http.StatusOK, BuildMeResponse(id, snap.Profile, policy, hd.Session.PaywallVisible(), now))
}

// CompleteOnboarding creates the profile on first use, marks onboarding done
// and starts the free trial for users who never had one.
func (h *Handler) CompleteOnboarding(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	p, err := h.profiles.FetchProfile(ctx, id.ID)
	switch {
	case errors.Is(err, repository.ErrProfileNotFound):
		p = &users.Profile{ID: id.ID, Email: id.Email, Role: users.RoleUser, Plan: plans.TierFree}
	case err != nil:
		h.logger.Error("onboarding: fetch profile", zap.String("user_id", id.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	now := h.clock.Now()
	p.DisplayName = req.DisplayName
	p.Goal = req.Goal
	p.OnboardingCompleted = true
	if !p.HasSubscriptionHistory() && h.trialLength > 0 {
		start, end := now, now.Add(h.trialLength)
		p.TrialStartAt = &start
		p.TrialEndsAt = &end
		p.Plan = plans.TierTrial
	}

	if err := h.profiles.SaveProfile(ctx, p); err != nil {
		h.logger.Error("onboarding: save profile", zap.String("user_id", id.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save profile"})
		return
	}

	if err := h.sessions.Refresh(ctx, id.ID); err != nil {
		h.logger.Warn("onboarding: refresh session", zap.String("user_id", id.ID), zap.Error(err))
	}

	paywall := false
	if hd, ok := middleware.SessionFrom(c); ok {
		paywall = hd.Session.PaywallVisible()
	}
	policy := access.ComputePolicy(now, p, h.sessions.Catalog())
	c.JSON(http.StatusOK, BuildMeResponse(id, p, policy, paywall, now))
}

// ExportData returns the caller's stored profile. Routed behind the
// data_export feature gate.
func (h *Handler) ExportData(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	p, err := h.profiles.FetchProfile(c.Request.Context(), id.ID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		h.logger.Error("export: fetch profile", zap.String("user_id", id.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	now := h.clock.Now()
	c.Header("Content-Disposition", `attachment; filename="profile-export.json"`)
	c.JSON(http.StatusOK, ExportResponse{
		ExportedAt: now,
		Profile:    p,
		Status:     access.ComputeStatus(p, now),
	})
}
