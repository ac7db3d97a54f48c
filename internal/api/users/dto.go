package users

import (
	"time"

	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
)

type MeResponse struct {
	User    UserDTO     `json:"user"`
	Profile *ProfileDTO `json:"profile"`
	Billing BillingDTO  `json:"billing"`
	Access  AccessDTO   `json:"access"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type ProfileDTO struct {
	DisplayName         string `json:"display_name"`
	Goal                string `json:"goal"`
	Role                string `json:"role"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	Plan         plans.Tier       `json:"plan"`
	Subscription *SubscriptionDTO `json:"subscription"`
	Trial        *TrialDTO        `json:"trial"`
}

type SubscriptionDTO struct {
	Status               string     `json:"status"`
	StartsAt             *time.Time `json:"starts_at"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
}

type TrialDTO struct {
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	DaysLeft int        `json:"days_left"`
}

/* ---------- ACCESS ---------- */

type AccessDTO struct {
	Status       access.SubscriptionStatus `json:"status"`
	Capabilities []access.Feature          `json:"capabilities"`
	Paywall      bool                      `json:"paywall"`
}

type OnboardingRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=80"`
	Goal        string `json:"goal" binding:"max=280"`
}

type ExportResponse struct {
	ExportedAt time.Time                 `json:"exported_at"`
	Profile    *users.Profile            `json:"profile"`
	Status     access.SubscriptionStatus `json:"status"`
}
