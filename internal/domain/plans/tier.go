package plans

import "strings"

type Tier string

// Tier constants (single source of truth)
const (
	TierFree    Tier = "free"
	TierTrial   Tier = "trial"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// tierRank orders tiers from least to most privileged.
var tierRank = map[Tier]int{
	TierFree:    0,
	TierTrial:   1,
	TierPremium: 2,
	TierPro:     3,
}

// Tiers returns every known tier in ascending rank.
func Tiers() []Tier {
	return []Tier{TierFree, TierTrial, TierPremium, TierPro}
}

// ParseTier normalizes a stored or external tier string.
// Unknown or empty values map to free so callers always get the
// least-privileged tier on doubt.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; ok {
		return t
	}
	return TierFree
}

// Known reports whether t is part of the closed tier set.
func Known(t Tier) bool {
	_, ok := tierRank[t]
	return ok
}

// Rank returns the position of t in the tier ordering, -1 if unknown.
func Rank(t Tier) int {
	r, ok := tierRank[t]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether t is ranked at or above min.
func AtLeast(t, min Tier) bool {
	return Known(t) && Known(min) && Rank(t) >= Rank(min)
}

// IsPaid reports whether t is a billed tier. Trial is not paid.
func IsPaid(t Tier) bool {
	return t == TierPremium || t == TierPro
}
