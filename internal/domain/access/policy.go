package access

import (
	"time"

	"wellness-gatekeeper/internal/domain/users"
)

type Policy struct {
	Status       SubscriptionStatus
	Capabilities []Feature
}

// ComputePolicy pairs the subscription status with the features its
// effective tier unlocks. A nil catalog means the default table.
func ComputePolicy(now time.Time, p *users.Profile, catalog *Catalog) Policy {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	status := ComputeStatus(p, now)

	return Policy{
		Status:       status,
		Capabilities: catalog.FeaturesFor(status.Plan),
	}
}
