package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
)

type memStore struct {
	profiles map[string]users.Profile
	fetches  int
	saves    int
}

func (m *memStore) FetchProfile(ctx context.Context, id string) (*users.Profile, error) {
	m.fetches++
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (m *memStore) SaveProfile(ctx context.Context, p *users.Profile) error {
	m.saves++
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) ListProfiles(ctx context.Context) ([]users.Profile, error) { return nil, nil }

func (m *memStore) FindBySubscriptionID(ctx context.Context, id string) (*users.Profile, error) {
	return nil, ErrProfileNotFound
}

func (m *memStore) FindByCustomerID(ctx context.Context, id string) (*users.Profile, error) {
	return nil, ErrProfileNotFound
}

type memCache struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func (c *memCache) Get(ctx context.Context, key string, result any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (c *memCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func newFixture() (*memStore, *memCache, *CachedProfileStore) {
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{profiles: map[string]users.Profile{
		"u1": {ID: "u1", Plan: plans.TierPremium, SubscriptionEndsAt: &end},
	}}
	cache := &memCache{data: map[string][]byte{}}
	return store, cache, NewCachedProfileStore(store, cache, time.Minute, zap.NewNop())
}

func TestCachedProfileStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store, _, cached := newFixture()

	first, err := cached.FetchProfile(ctx, "u1")
	require.NoError(t, err)
	second, err := cached.FetchProfile(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.fetches)
	assert.Equal(t, first.Plan, second.Plan)
	assert.True(t, first.SubscriptionEndsAt.Equal(*second.SubscriptionEndsAt))
}

func TestCachedProfileStore_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	store, cache, cached := newFixture()

	_, err := cached.FetchProfile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	_, err = cached.FetchProfile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.Equal(t, 2, store.fetches)
	assert.Empty(t, cache.data)
}

func TestCachedProfileStore_CacheFailureFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store, cache, cached := newFixture()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")

	p, err := cached.FetchProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, plans.TierPremium, p.Plan)
	assert.Equal(t, 1, store.fetches)
}

func TestCachedProfileStore_SaveInvalidates(t *testing.T) {
	ctx := context.Background()
	store, _, cached := newFixture()

	_, err := cached.FetchProfile(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, cached.SaveProfile(ctx, &users.Profile{ID: "u1", Plan: plans.TierPro}))

	p, err := cached.FetchProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, plans.TierPro, p.Plan)
	assert.Equal(t, 2, store.fetches)
	assert.Equal(t, 1, store.saves)
}
