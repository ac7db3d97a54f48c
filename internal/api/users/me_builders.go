package users

import (
	"time"

	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/infra/stripe"
)

func BuildMeResponse(id access.Identity, p *users.Profile, policy access.Policy, paywall bool, now time.Time) MeResponse {
	return MeResponse{
		User: UserDTO{
			ID:            id.ID,
			Email:         id.Email,
			EmailVerified: id.EmailVerified,
		},
		Profile: BuildProfileDTO(p),
		Billing: BillingDTO{
			Plan:         p.Tier(),
			Subscription: BuildSubscriptionDTO(p),
			Trial:        BuildTrialDTO(now, p),
		},
		Access: AccessDTO{
			Status:       policy.Status,
			Capabilities: policy.Capabilities,
			Paywall:      paywall,
		},
	}
}

func BuildProfileDTO(p *users.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		DisplayName:         p.DisplayName,
		Goal:                p.Goal,
		Role:                p.Role,
		OnboardingCompleted: p.OnboardingCompleted,
	}
}

func BuildSubscriptionDTO(p *users.Profile) *SubscriptionDTO {
	if p == nil || p.SubscriptionID == nil || *p.SubscriptionID == "" {
		return nil
	}
	raw := ""
	if p.StripeSubscriptionStatus != nil {
		raw = *p.StripeSubscriptionStatus
	}
	return &SubscriptionDTO{
		Status:               string(stripe.NormalizeStatus(raw)),
		StartsAt:             p.SubscriptionStartAt,
		CurrentPeriodEnd:     p.SubscriptionEndsAt,
		StripeSubscriptionID: p.SubscriptionID,
	}
}

func BuildTrialDTO(now time.Time, p *users.Profile) *TrialDTO {
	if p == nil || p.TrialEndsAt == nil {
		return nil
	}

	// Trial days only; a paid plan must not report its period here.
	trialOnly := &users.Profile{TrialEndsAt: p.TrialEndsAt}
	return &TrialDTO{
		StartsAt: p.TrialStartAt,
		EndsAt:   p.TrialEndsAt,
		DaysLeft: access.ComputeStatus(trialOnly, now).DaysRemaining,
	}
}
