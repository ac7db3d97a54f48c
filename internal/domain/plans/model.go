package plans

import "time"

// Plan maps a Stripe recurring price to the tier it grants.
type Plan struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	StripePriceID string    `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id" json:"stripe_price_id"`
	ProductID     string    `gorm:"column:stripe_product_id;index" json:"stripe_product_id"`
	Interval      string    `json:"interval"`
	Tier          string    `gorm:"column:tier" json:"tier"` // "premium" | "pro"
	UpdatedAt     time.Time `json:"updated_at"`
}

// EffectiveTier returns the tier a plan grants. Rows synced without a
// recognizable paid tier grant nothing.
func (p *Plan) EffectiveTier() Tier {
	if p == nil {
		return TierFree
	}
	t := ParseTier(p.Tier)
	if !IsPaid(t) {
		return TierFree
	}
	return t
}
