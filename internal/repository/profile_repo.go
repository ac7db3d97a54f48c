package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wellness-gatekeeper/internal/domain/users"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileStore interface {
	FetchProfile(ctx context.Context, userID string) (*users.Profile, error)
	SaveProfile(ctx context.Context, p *users.Profile) error
	ListProfiles(ctx context.Context) ([]users.Profile, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*users.Profile, error)
	FindByCustomerID(ctx context.Context, customerID string) (*users.Profile, error)
}

type GormProfileStore struct {
	db *gorm.DB
}

func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{db: db}
}

func (s *GormProfileStore) FetchProfile(ctx context.Context, userID string) (*users.Profile, error) {
	return s.first(ctx, "id = ?", userID)
}

func (s *GormProfileStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*users.Profile, error) {
	return s.first(ctx, "subscription_id = ?", subscriptionID)
}

func (s *GormProfileStore) FindByCustomerID(ctx context.Context, customerID string) (*users.Profile, error) {
	return s.first(ctx, "stripe_customer_id = ?", customerID)
}

func (s *GormProfileStore) SaveProfile(ctx context.Context, p *users.Profile) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *GormProfileStore) ListProfiles(ctx context.Context) ([]users.Profile, error) {
	var out []users.Profile
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

func (s *GormProfileStore) first(ctx context.Context, query string, arg any) (*users.Profile, error) {
	var p users.Profile
	err := s.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &p, nil
}
