package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository"
)

type AdminUser struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	Role                string     `json:"role"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	Plan                plans.Tier `json:"plan"`
	EffectivePlan       plans.Tier `json:"effective_plan"`
	IsExpired           bool       `json:"is_expired"`
	DaysRemaining       int        `json:"days_remaining"`
	StripeCustomerID    *string    `json:"stripe_customer_id,omitempty"`
	StripeSubID         *string    `json:"stripe_subscription_id,omitempty"`
	TrialEndsAt         *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt  *time.Time `json:"subscription_ends_at,omitempty"`
}

type AdminStats struct {
	TotalUsers   int                `json:"total_users"`
	Expired      int                `json:"expired"`
	UsersPerPlan map[plans.Tier]int `json:"users_per_plan"`
}

type Handler struct {
	profiles repository.ProfileStore
	catalog  *access.Catalog
	clock    clock.Clock
	logger   *zap.Logger
}

func NewHandler(profiles repository.ProfileStore, catalog *access.Catalog, clk clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{profiles: profiles, catalog: catalog, clock: clk, logger: logger}
}

func toAdminUser(p users.Profile, st access.SubscriptionStatus) AdminUser {
	return AdminUser{
		ID:                  p.ID,
		Email:               p.Email,
		DisplayName:         p.DisplayName,
		Role:                p.Role,
		OnboardingCompleted: p.OnboardingCompleted,
		Plan:                p.Tier(),
		EffectivePlan:       st.Plan,
		IsExpired:           st.IsExpired,
		DaysRemaining:       st.DaysRemaining,
		StripeCustomerID:    p.StripeCustomerID,
		StripeSubID:         p.SubscriptionID,
		TrialEndsAt:         p.TrialEndsAt,
		SubscriptionEndsAt:  p.SubscriptionEndsAt,
	}
}

func (h *Handler) ListAllUsers(c *gin.Context) {
	list, err := h.profiles.ListProfiles(c.Request.Context())
	if err != nil {
		h.logger.Error("admin: list profiles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	now := h.clock.Now()
	adminUsers := make([]AdminUser, 0, len(list))
	for i := range list {
		adminUsers = append(adminUsers, toAdminUser(list[i], access.ComputeStatus(&list[i], now)))
	}

	c.JSON(http.StatusOK, adminUsers)
}

func (h *Handler) GetAdminStats(c *gin.Context) {
	list, err := h.profiles.ListProfiles(c.Request.Context())
	if err != nil {
		h.logger.Error("admin: list profiles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	now := h.clock.Now()
	stats := AdminStats{TotalUsers: len(list), UsersPerPlan: map[plans.Tier]int{}}
	for i := range list {
		st := access.ComputeStatus(&list[i], now)
		stats.UsersPerPlan[st.Plan]++
		if st.IsExpired {
			stats.Expired++
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetUserDetails(c *gin.Context) {
	userID := c.Param("id")

	p, err := h.profiles.FetchProfile(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("admin: fetch profile", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	policy := access.ComputePolicy(h.clock.Now(), p, h.catalog)
	c.JSON(http.StatusOK, gin.H{
		"user":         toAdminUser(*p, policy.Status),
		"status":       policy.Status,
		"capabilities": policy.Capabilities,
	})
}
