package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
)

func TestComputePolicy_CapabilitiesFollowEffectiveTier(t *testing.T) {
	lapsed := &users.Profile{Plan: plans.TierPro, SubscriptionEndsAt: at(-day)}
	p := ComputePolicy(now, lapsed, nil)

	assert.True(t, p.Status.IsExpired)
	assert.Equal(t, DefaultCatalog().FeaturesFor(plans.TierFree), p.Capabilities)

	active := &users.Profile{Plan: plans.TierPro, SubscriptionEndsAt: at(day)}
	p = ComputePolicy(now, active, DefaultCatalog())
	assert.Contains(t, p.Capabilities, FeatureDataExport)
}
