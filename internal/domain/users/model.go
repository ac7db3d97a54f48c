package users

import (
	"time"

	"wellness-gatekeeper/internal/domain/plans"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile is the per-user document the gatekeeper reads. ID is the subject
// issued by the external auth provider.
type Profile struct {
	ID          string `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Email       string `gorm:"index" json:"email"`
	DisplayName string `json:"display_name"`
	Goal        string `json:"goal"`
	Role        string `gorm:"type:varchar(20);not null;default:'user'" json:"role"`

	OnboardingCompleted bool `gorm:"not null;default:false" json:"onboarding_completed"`

	Plan plans.Tier `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`

	TrialStartAt        *time.Time `gorm:"column:trial_start_at" json:"trial_start_at"`
	TrialEndsAt         *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at"`
	SubscriptionStartAt *time.Time `gorm:"column:subscription_start_at" json:"subscription_start_at"`
	SubscriptionEndsAt  *time.Time `gorm:"column:subscription_ends_at" json:"subscription_ends_at"`

	SubscriptionID           *string `gorm:"column:subscription_id;uniqueIndex:idx_profiles_subscription_id" json:"subscription_id"`
	StripeCustomerID         *string `gorm:"column:stripe_customer_id;uniqueIndex:idx_profiles_stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionStatus *string `gorm:"column:stripe_subscription_status" json:"stripe_subscription_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tier returns the normalized plan tier.
func (p *Profile) Tier() plans.Tier {
	if p == nil {
		return plans.TierFree
	}
	return plans.ParseTier(string(p.Plan))
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// HasSubscriptionHistory reports whether the profile ever started a trial or
// a paid subscription.
func (p *Profile) HasSubscriptionHistory() bool {
	if p == nil {
		return false
	}
	return p.TrialEndsAt != nil || p.SubscriptionEndsAt != nil ||
		p.SubscriptionID != nil || p.Tier() != plans.TierFree
}

// Clone returns a copy that shares no pointers with p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.TrialStartAt = cloneTime(p.TrialStartAt)
	c.TrialEndsAt = cloneTime(p.TrialEndsAt)
	c.SubscriptionStartAt = cloneTime(p.SubscriptionStartAt)
	c.SubscriptionEndsAt = cloneTime(p.SubscriptionEndsAt)
	c.SubscriptionID = cloneString(p.SubscriptionID)
	c.StripeCustomerID = cloneString(p.StripeCustomerID)
	c.StripeSubscriptionStatus = cloneString(p.StripeSubscriptionStatus)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
