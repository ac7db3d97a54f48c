package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wellness-gatekeeper/internal/domain/users"
)

type profileCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// CachedProfileStore is a read-through cache in front of a ProfileStore.
// The wrapped store stays authoritative: cache errors are logged and bypassed.
type CachedProfileStore struct {
	ProfileStore
	cache  profileCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProfileStore(next ProfileStore, cache profileCache, ttl time.Duration, logger *zap.Logger) *CachedProfileStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProfileStore{ProfileStore: next, cache: cache, ttl: ttl, logger: logger}
}

func profileKey(userID string) string { return "profile:" + userID }

func (s *CachedProfileStore) FetchProfile(ctx context.Context, userID string) (*users.Profile, error) {
	key := profileKey(userID)

	var cached users.Profile
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return &cached, nil
	}

	p, err := s.ProfileStore.FetchProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, p, s.ttl); err != nil {
		s.logger.Warn("profile cache write failed", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

func (s *CachedProfileStore) SaveProfile(ctx context.Context, p *users.Profile) error {
	if err := s.ProfileStore.SaveProfile(ctx, p); err != nil {
		return err
	}
	s.Invalidate(ctx, p.ID)
	return nil
}

// Invalidate drops the cached copy after an out-of-band change.
func (s *CachedProfileStore) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, profileKey(userID)); err != nil {
		s.logger.Warn("profile cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
