package access

import (
	"time"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
)

const day = 24 * time.Hour

// ComputeStatus derives entitlement from the profile's plan and timestamps.
//
// A paid subscription masks an unexpired trial. A profile with neither an
// active trial nor an active paid plan is expired, including a brand-new free
// profile. A nil profile is treated as free.
func ComputeStatus(p *users.Profile, now time.Time) SubscriptionStatus {
	if p == nil {
		return SubscriptionStatus{Plan: plans.TierFree, IsExpired: true}
	}

	tier := p.Tier()
	trialActive := p.TrialEndsAt != nil && p.TrialEndsAt.After(now)
	subscribed := plans.IsPaid(tier) &&
		(p.SubscriptionEndsAt == nil || p.SubscriptionEndsAt.After(now))

	if subscribed {
		trialActive = false
	}

	status := SubscriptionStatus{
		IsTrialActive:      trialActive,
		IsSubscribed:       subscribed,
		Plan:               plans.TierFree,
		TrialEndsAt:        copyTime(p.TrialEndsAt),
		SubscriptionEndsAt: copyTime(p.SubscriptionEndsAt),
		IsExpired:          !trialActive && !subscribed,
	}

	effectiveEnd := now
	switch {
	case subscribed:
		status.Plan = tier
		if p.SubscriptionEndsAt == nil {
			status.Unlimited = true
		} else {
			effectiveEnd = *p.SubscriptionEndsAt
		}
	case trialActive:
		status.Plan = plans.TierTrial
		effectiveEnd = *p.TrialEndsAt
	}
	status.DaysRemaining = daysUntil(now, effectiveEnd)

	return status
}

// daysUntil rounds the remaining time up to whole days. Non-positive
// durations (including clock skew) yield 0.
func daysUntil(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	days := d / day
	if d%day != 0 {
		days++
	}
	return int(days)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
