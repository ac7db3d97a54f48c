package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wellness-gatekeeper/internal/domain/plans"
)

var ErrPlanNotFound = errors.New("plan not found")

type PlanStore interface {
	TierForPrice(ctx context.Context, priceID string) (plans.Tier, error)
	UpsertPlan(ctx context.Context, p *plans.Plan) (created bool, err error)
	ListPlans(ctx context.Context, productID string) ([]plans.Plan, error)
}

type GormPlanStore struct {
	db *gorm.DB
}

func NewGormPlanStore(db *gorm.DB) *GormPlanStore {
	return &GormPlanStore{db: db}
}

// TierForPrice maps a Stripe price to the tier it grants.
func (s *GormPlanStore) TierForPrice(ctx context.Context, priceID string) (plans.Tier, error) {
	var p plans.Plan
	err := s.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return plans.TierFree, ErrPlanNotFound
	}
	if err != nil {
		return plans.TierFree, fmt.Errorf("plan for price %s: %w", priceID, err)
	}
	return p.EffectiveTier(), nil
}

// UpsertPlan inserts or updates by Stripe price id. An empty tier on an
// existing row keeps the stored tier.
func (s *GormPlanStore) UpsertPlan(ctx context.Context, p *plans.Plan) (bool, error) {
	db := s.db.WithContext(ctx)

	var existing plans.Plan
	err := db.Where("stripe_price_id = ?", p.StripePriceID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Create(p).Error; err != nil {
			return false, fmt.Errorf("create plan %s: %w", p.StripePriceID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load plan %s: %w", p.StripePriceID, err)
	}

	existing.Name = p.Name
	existing.PriceCents = p.PriceCents
	existing.Currency = p.Currency
	existing.ProductID = p.ProductID
	existing.Interval = p.Interval
	if p.Tier != "" {
		existing.Tier = p.Tier
	}
	if err := db.Save(&existing).Error; err != nil {
		return false, fmt.Errorf("update plan %s: %w", p.StripePriceID, err)
	}
	*p = existing
	return false, nil
}

func (s *GormPlanStore) ListPlans(ctx context.Context, productID string) ([]plans.Plan, error) {
	q := s.db.WithContext(ctx).Model(&plans.Plan{})
	if productID != "" {
		q = q.Where("stripe_product_id = ?", productID)
	}

	var out []plans.Plan
	if err := q.Order("price_cents ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return out, nil
}
