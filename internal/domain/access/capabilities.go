package access

import (
	"sort"

	"wellness-gatekeeper/internal/domain/plans"
)

type Feature string

const (
	FeatureProfile           Feature = "profile"
	FeatureProgressBasic     Feature = "progress_basic"
	FeatureFoodLog           Feature = "food_log"
	FeatureWorkoutLog        Feature = "workout_log"
	FeatureCoachChat         Feature = "coach_chat"
	FeatureMealPlans         Feature = "meal_plans"
	FeatureWorkoutPlans      Feature = "workout_plans"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureDataExport        Feature = "data_export"
	FeaturePriorityCoaching  Feature = "priority_coaching"
)

// DefaultGrants lists what each tier adds on top of the tiers below it.
var DefaultGrants = map[plans.Tier][]Feature{
	plans.TierFree:    {FeatureProfile, FeatureProgressBasic},
	plans.TierTrial:   {FeatureFoodLog, FeatureWorkoutLog, FeatureCoachChat},
	plans.TierPremium: {FeatureMealPlans, FeatureWorkoutPlans, FeatureAdvancedAnalytics},
	plans.TierPro:     {FeatureDataExport, FeaturePriorityCoaching},
}

// Catalog is the static tier -> feature table. Sets are cumulative in tier
// rank, so a feature granted to a tier is granted to every higher tier.
type Catalog struct {
	sets    map[plans.Tier]map[Feature]struct{}
	minTier map[Feature]plans.Tier
}

// NewCatalog builds a catalog from per-tier grants. Grants keyed by tiers
// outside the closed tier set are ignored.
func NewCatalog(grants map[plans.Tier][]Feature) *Catalog {
	c := &Catalog{
		sets:    make(map[plans.Tier]map[Feature]struct{}, len(plans.Tiers())),
		minTier: make(map[Feature]plans.Tier),
	}

	acc := make(map[Feature]struct{})
	for _, tier := range plans.Tiers() {
		for _, f := range grants[tier] {
			if _, seen := c.minTier[f]; !seen {
				c.minTier[f] = tier
			}
			acc[f] = struct{}{}
		}
		set := make(map[Feature]struct{}, len(acc))
		for f := range acc {
			set[f] = struct{}{}
		}
		c.sets[tier] = set
	}
	return c
}

var defaultCatalog = NewCatalog(DefaultGrants)

func DefaultCatalog() *Catalog { return defaultCatalog }

// CanAccessFeature is fail-closed: unknown tiers and unregistered features
// are denied.
func (c *Catalog) CanAccessFeature(tier plans.Tier, feature Feature) bool {
	set, ok := c.sets[tier]
	if !ok {
		return false
	}
	_, ok = set[feature]
	return ok
}

// Known reports whether feature is registered for any tier.
func (c *Catalog) Known(feature Feature) bool {
	_, ok := c.minTier[feature]
	return ok
}

// MinimumTier returns the lowest tier granting feature.
func (c *Catalog) MinimumTier(feature Feature) (plans.Tier, bool) {
	t, ok := c.minTier[feature]
	return t, ok
}

// FeaturesFor returns the features granted to tier, sorted.
func (c *Catalog) FeaturesFor(tier plans.Tier) []Feature {
	set := c.sets[tier]
	out := make([]Feature, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func CanAccessFeature(tier plans.Tier, feature Feature) bool {
	return defaultCatalog.CanAccessFeature(tier, feature)
}
