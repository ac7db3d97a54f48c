// Package session holds the stateful side of the gatekeeper: per-user
// entitlement sessions, the navigation supervisor, and the registry the HTTP
// layer uses to reach them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/debugreport"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/metrics"
	"wellness-gatekeeper/internal/repository"
)

var ErrSessionClosed = errors.New("session closed")

const (
	DefaultRecheckInterval = 5 * time.Minute
	DefaultCoalesceWindow  = 1500 * time.Millisecond
	defaultFetchTimeout    = 5 * time.Second
)

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (*users.Profile, error)
}

type EntitlementConfig struct {
	Store           ProfileFetcher
	Catalog         *access.Catalog
	Clock           clock.Clock
	Logger          *zap.Logger
	Reporter        *debugreport.Reporter
	Metrics         *metrics.Metrics
	RecheckInterval time.Duration
	CoalesceWindow  time.Duration
	FetchTimeout    time.Duration
}

func (c EntitlementConfig) withDefaults() EntitlementConfig {
	if c.Catalog == nil {
		c.Catalog = access.DefaultCatalog()
	}
	if c.Clock == nil {
		c.Clock = clock.System{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.RecheckInterval <= 0 {
		c.RecheckInterval = DefaultRecheckInterval
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = DefaultCoalesceWindow
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	return c
}

// Snapshot is one consistent view of a session. Checked is false until the
// first check for the current identity has completed.
type Snapshot struct {
	Identity *access.Identity
	Profile  *users.Profile
	Status   access.SubscriptionStatus
	Checked  bool
	// Degraded is set when the last check failed and Profile is the last
	// known one (or nil).
	Degraded bool
}

// RouteInput adapts the snapshot for the route gate.
func (s Snapshot) RouteInput(path string) access.RouteInput {
	return access.RouteInput{
		Initialized: s.Checked,
		User:        s.Identity,
		Profile:     s.Profile,
		Path:        path,
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	out.Profile = s.Profile.Clone()
	return out
}

// EntitlementSession tracks one user's entitlement. At most one profile
// check is live at a time: a newer check cancels the older one and the
// older result is dropped.
type EntitlementSession struct {
	cfg         EntitlementConfig
	recheckGate *rate.Limiter

	mu      sync.Mutex
	snap    Snapshot
	paywall bool
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	started bool
	// ready is closed once snap.Checked is true for the current identity.
	ready chan struct{}

	startOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewEntitlementSession(cfg EntitlementConfig) *EntitlementSession {
	cfg = cfg.withDefaults()
	return &EntitlementSession{
		cfg:         cfg,
		recheckGate: rate.NewLimiter(rate.Every(cfg.CoalesceWindow), 1),
		ready:       make(chan struct{}),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// OnAuthChange handles a login, logout or identity update. A nil identity
// is a logout and resets the session to the least-privileged state.
//
// It returns nil when the check was superseded by a newer one.
func (s *EntitlementSession) OnAuthChange(ctx context.Context, id *access.Identity) error {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.recheckGate.AllowN(now, 1)

	if id == nil {
		s.gen++
		s.cancelLocked()
		s.commitLocked(nil, nil, now)
		s.mu.Unlock()
		return nil
	}

	ident := *id
	if s.snap.Identity == nil || s.snap.Identity.ID != ident.ID {
		if s.snap.Checked {
			s.ready = make(chan struct{})
		}
		s.snap = Snapshot{Identity: &ident}
		s.paywall = false
	} else {
		next := s.snap
		next.Identity = &ident
		s.snap = next
	}
	gen, fetchCtx, cancel := s.beginLocked(ctx)
	s.mu.Unlock()
	defer cancel()

	p, err := s.cfg.Store.FetchProfile(fetchCtx, ident.ID)
	return s.finish(gen, ident.ID, p, err)
}

// Recheck re-fetches the profile for the current identity. Calls inside the
// coalescing window of a previous check are dropped.
func (s *EntitlementSession) Recheck(ctx context.Context) error {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.snap.Identity == nil || !s.recheckGate.AllowN(now, 1) {
		s.mu.Unlock()
		return nil
	}
	userID := s.snap.Identity.ID
	gen, fetchCtx, cancel := s.beginLocked(ctx)
	s.mu.Unlock()
	defer cancel()

	p, err := s.cfg.Store.FetchProfile(fetchCtx, userID)
	return s.finish(gen, userID, p, err)
}

func (s *EntitlementSession) beginLocked(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	s.cancelLocked()
	s.gen++
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	s.cancel = cancel
	return s.gen, fetchCtx, cancel
}

func (s *EntitlementSession) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *EntitlementSession) finish(gen uint64, userID string, p *users.Profile, fetchErr error) error {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if gen != s.gen {
		return nil
	}
	s.cancel = nil

	var err error
	switch {
	case fetchErr == nil:
	case errors.Is(fetchErr, repository.ErrProfileNotFound):
		p = nil
	default:
		s.cfg.Logger.Warn("profile fetch failed, keeping last known profile",
			zap.String("user_id", userID), zap.Error(fetchErr))
		s.cfg.Metrics.ObserveFetchFailure()
		s.cfg.Reporter.Report(debugreport.Event{
			Key:     "fetch:" + userID,
			Kind:    "profile_fetch_failed",
			UserID:  userID,
			Message: fetchErr.Error(),
		})
		p = s.snap.Profile
		err = fmt.Errorf("fetch profile %s: %w", userID, fetchErr)
	}

	s.commitLocked(s.snap.Identity, p, now)
	s.snap.Degraded = err != nil
	return err
}

func (s *EntitlementSession) commitLocked(id *access.Identity, p *users.Profile, now time.Time) {
	prev := s.snap
	st := access.ComputeStatus(p, now)
	s.snap = Snapshot{Identity: id, Profile: p, Status: st, Checked: true}
	s.cfg.Metrics.ObserveCheck(st)
	if !prev.Checked {
		close(s.ready)
	}

	switch {
	case id == nil:
		s.paywall = false
	case st.IsExpired:
		if !s.paywall {
			s.paywall = true
			s.cfg.Metrics.ObservePaywall("expired")
		}
	case !prev.Checked || prev.Status.IsExpired:
		// A denial raised before the first check does not outlive it.
		s.paywall = false
	}

	if prev.Checked && statusChanged(prev.Status, st) {
		userID := ""
		if id != nil {
			userID = id.ID
		}
		s.cfg.Reporter.Report(debugreport.Event{
			Key:     "status:" + userID,
			Kind:    "entitlement_changed",
			UserID:  userID,
			Message: "entitlement changed",
			Fields: map[string]string{
				"from": string(prev.Status.Plan),
				"to":   string(st.Plan),
			},
		})
	}
}

func statusChanged(a, b access.SubscriptionStatus) bool {
	return a.Plan != b.Plan || a.IsExpired != b.IsExpired ||
		a.IsSubscribed != b.IsSubscribed || a.IsTrialActive != b.IsTrialActive
}

// RequireFeature reports whether the current user may use feature. A false
// return means the action is blocked and the paywall flag is now set.
func (s *EntitlementSession) RequireFeature(feature access.Feature) bool {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	// Nothing is known yet: deny, but leave the paywall alone.
	if !s.snap.Checked {
		return false
	}
	st := access.ComputeStatus(s.snap.Profile, now)
	if s.cfg.Catalog.CanAccessFeature(st.Plan, feature) {
		return true
	}

	if !s.paywall {
		s.cfg.Metrics.ObservePaywall("feature")
	}
	s.paywall = true
	userID := ""
	if s.snap.Identity != nil {
		userID = s.snap.Identity.ID
	}
	s.cfg.Reporter.Report(debugreport.Event{
		Key:     "feature:" + userID + ":" + string(feature),
		Kind:    "feature_blocked",
		UserID:  userID,
		Message: "feature blocked",
		Fields:  map[string]string{"feature": string(feature), "plan": string(st.Plan)},
	})
	return false
}

// CanAccess is RequireFeature without the paywall side effect.
func (s *EntitlementSession) CanAccess(feature access.Feature) bool {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	st := access.ComputeStatus(s.snap.Profile, now)
	return s.cfg.Catalog.CanAccessFeature(st.Plan, feature)
}

func (s *EntitlementSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

func (s *EntitlementSession) Status() access.SubscriptionStatus {
	return s.Snapshot().Status
}

func (s *EntitlementSession) Profile() *users.Profile {
	return s.Snapshot().Profile
}

func (s *EntitlementSession) Identity() *access.Identity {
	return s.Snapshot().Identity
}

func (s *EntitlementSession) Checked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Checked
}

func (s *EntitlementSession) PaywallVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paywall
}

// Degraded reports whether the last check failed.
func (s *EntitlementSession) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Degraded
}

// WaitChecked blocks until the current identity's first check has completed,
// ctx is done or the session is closed.
func (s *EntitlementSession) WaitChecked(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-s.stop:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EntitlementSession) DismissPaywall() {
	s.mu.Lock()
	s.paywall = false
	s.mu.Unlock()
}

// Start launches the periodic recheck loop. Only the first call has effect.
func (s *EntitlementSession) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.started = true
		s.mu.Unlock()
		go s.loop(ctx)
	})
}

func (s *EntitlementSession) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.RecheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Recheck(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
				s.cfg.Logger.Debug("periodic recheck failed", zap.Error(err))
			}
		}
	}
}

// Close stops the recheck loop and cancels any in-flight check. Results that
// arrive afterwards are discarded. Safe to call more than once.
func (s *EntitlementSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.cancelLocked()
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}
