// Package repotest provides in-memory stores for tests.
package repotest

import (
	"context"
	"sort"
	"sync"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository"
)

type Profiles struct {
	mu   sync.Mutex
	rows map[string]*users.Profile
	// Err, when set, is returned by every call.
	Err error
}

var _ repository.ProfileStore = (*Profiles)(nil)

func NewProfiles(seed ...*users.Profile) *Profiles {
	s := &Profiles{rows: map[string]*users.Profile{}}
	for _, p := range seed {
		s.rows[p.ID] = p.Clone()
	}
	return s
}

func (s *Profiles) FetchProfile(_ context.Context, userID string) (*users.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.rows[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *Profiles) SaveProfile(_ context.Context, p *users.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.rows[p.ID] = p.Clone()
	return nil
}

func (s *Profiles) ListProfiles(_ context.Context) ([]users.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]users.Profile, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Profiles) FindBySubscriptionID(_ context.Context, id string) (*users.Profile, error) {
	return s.find(func(p *users.Profile) bool {
		return p.SubscriptionID != nil && *p.SubscriptionID == id
	})
}

func (s *Profiles) FindByCustomerID(_ context.Context, id string) (*users.Profile, error) {
	return s.find(func(p *users.Profile) bool {
		return p.StripeCustomerID != nil && *p.StripeCustomerID == id
	})
}

func (s *Profiles) find(match func(*users.Profile) bool) (*users.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.rows {
		if match(p) {
			return p.Clone(), nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

type Plans struct {
	mu   sync.Mutex
	rows map[string]plans.Plan
}

var _ repository.PlanStore = (*Plans)(nil)

func NewPlans(seed ...plans.Plan) *Plans {
	s := &Plans{rows: map[string]plans.Plan{}}
	for _, p := range seed {
		s.rows[p.StripePriceID] = p
	}
	return s
}

func (s *Plans) TierForPrice(_ context.Context, priceID string) (plans.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[priceID]
	if !ok {
		return plans.TierFree, repository.ErrPlanNotFound
	}
	return p.EffectiveTier(), nil
}

func (s *Plans) UpsertPlan(_ context.Context, p *plans.Plan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rows[p.StripePriceID]
	if ok && p.Tier == "" {
		p.Tier = existing.Tier
	}
	s.rows[p.StripePriceID] = *p
	return !ok, nil
}

func (s *Plans) ListPlans(_ context.Context, productID string) ([]plans.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []plans.Plan
	for _, p := range s.rows {
		if productID == "" || p.ProductID == productID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}
