package access

import (
	"time"

	"wellness-gatekeeper/internal/domain/plans"
)

// Identity is what the external auth provider tells us about the caller.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role,omitempty"`
}

// SubscriptionStatus is a derived view of a profile at one instant.
// It is never persisted and never mutated after ComputeStatus returns it.
type SubscriptionStatus struct {
	IsTrialActive      bool       `json:"is_trial_active"`
	IsSubscribed       bool       `json:"is_subscribed"`
	Plan               plans.Tier `json:"plan"` // effective tier used for gating
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at"`
	DaysRemaining      int        `json:"days_remaining"`
	IsExpired          bool       `json:"is_expired"`
	Unlimited          bool       `json:"unlimited"`
}

// Entitled reports whether the status grants access past the paywall.
func (s SubscriptionStatus) Entitled() bool {
	return !s.IsExpired
}

type DecisionKind int

const (
	// DecisionPending means no decision: state is not known yet.
	DecisionPending DecisionKind = iota
	DecisionAllow
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	default:
		return "pending"
	}
}

// Decision is the outcome of a route gate evaluation.
type Decision struct {
	Kind DecisionKind
	Path string // target of a redirect, empty otherwise
}

func Pending() Decision { return Decision{Kind: DecisionPending} }

func Allow() Decision { return Decision{Kind: DecisionAllow} }

func RedirectTo(path string) Decision {
	return Decision{Kind: DecisionRedirect, Path: path}
}

func (d Decision) IsRedirect() bool { return d.Kind == DecisionRedirect }

func (d Decision) Equal(o Decision) bool {
	return d.Kind == o.Kind && d.Path == o.Path
}

func (d Decision) String() string {
	if d.IsRedirect() {
		return "redirect:" + d.Path
	}
	return d.Kind.String()
}
