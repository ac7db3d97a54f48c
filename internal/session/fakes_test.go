package session

import (
	"context"
	"sync"
	"time"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository"
)

var t0 = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*users.Profile
	err      error
	calls    int

	// hold blocks fetches for a user until the channel is closed,
	// regardless of ctx.
	hold map[string]chan struct{}
	// watchCtx makes held fetches also return when ctx is cancelled.
	watchCtx bool
	started  chan string
	ctxErrs  []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]*users.Profile{}, hold: map[string]chan struct{}{}}
}

func (f *fakeStore) put(p *users.Profile) {
	f.mu.Lock()
	f.profiles[p.ID] = p
	f.mu.Unlock()
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) FetchProfile(ctx context.Context, userID string) (*users.Profile, error) {
	f.mu.Lock()
	f.calls++
	hold := f.hold[userID]
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- userID
	}
	if hold != nil {
		if f.watchCtx {
			select {
			case <-hold:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-hold
		}
		f.mu.Lock()
		f.ctxErrs = append(f.ctxErrs, ctx.Err())
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func trialProfile(id string, ends time.Time) *users.Profile {
	return &users.Profile{
		ID:                  id,
		OnboardingCompleted: true,
		Role:                users.RoleUser,
		Plan:                plans.TierTrial,
		TrialEndsAt:         ptr(ends),
	}
}

func paidProfile(id string, tier plans.Tier, ends *time.Time) *users.Profile {
	return &users.Profile{
		ID:                  id,
		OnboardingCompleted: true,
		Role:                users.RoleUser,
		Plan:                tier,
		SubscriptionEndsAt:  ends,
	}
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingNavigator) Navigate(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recordingNavigator) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}
