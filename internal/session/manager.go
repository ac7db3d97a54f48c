package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"wellness-gatekeeper/internal/domain/access"
)

const defaultIdleTTL = 30 * time.Minute

// Handle bundles the per-user session and navigation supervisor.
type Handle struct {
	UserID     string
	Session    *EntitlementSession
	Navigation *NavigationSupervisor

	lastSeen time.Time
}

func (h *Handle) close() {
	h.Session.Close()
	h.Navigation.Close()
}

type ManagerConfig struct {
	Entitlement EntitlementConfig
	Gate        *access.RouteGate
	// NewNavigator builds the redirect sink for a user. Nil means redirects
	// are only logged.
	NewNavigator func(userID string) Navigator
	IdleTTL      time.Duration
}

// Manager owns one Handle per signed-in user.
type Manager struct {
	cfg    ManagerConfig
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Handle
	closed   bool
}

func NewManager(cfg ManagerConfig) *Manager {
	cfg.Entitlement = cfg.Entitlement.withDefaults()
	if cfg.Gate == nil {
		cfg.Gate = access.NewRouteGate(access.DefaultRouteGateConfig())
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	logger := cfg.Entitlement.Logger
	if cfg.NewNavigator == nil {
		cfg.NewNavigator = func(userID string) Navigator {
			return NavigatorFunc(func(path string) {
				logger.Info("navigate", zap.String("user_id", userID), zap.String("path", path))
			})
		}
	}
	return &Manager{cfg: cfg, logger: logger, sessions: make(map[string]*Handle)}
}

func (m *Manager) Gate() *access.RouteGate { return m.cfg.Gate }

func (m *Manager) Catalog() *access.Catalog { return m.cfg.Entitlement.Catalog }

// Acquire returns the user's handle, creating and starting a session on
// first use. A changed identity (for example a newly verified email) is
// forwarded to the session as an auth event, and a session whose last check
// failed is checked again.
func (m *Manager) Acquire(ctx context.Context, id access.Identity) (*Handle, error) {
	now := m.cfg.Entitlement.Clock.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	h, ok := m.sessions[id.ID]
	if !ok {
		h = &Handle{
			UserID:     id.ID,
			Session:    NewEntitlementSession(m.cfg.Entitlement),
			Navigation: NewNavigationSupervisor(m.cfg.Gate, m.cfg.NewNavigator(id.ID), m.cfg.Entitlement.Reporter, m.cfg.Entitlement.Metrics),
		}
		m.sessions[id.ID] = h
	}
	h.lastSeen = now
	m.mu.Unlock()

	if !ok {
		h.Session.Start(context.Background())
		m.logger.Debug("session created", zap.String("user_id", id.ID))
	}

	// The check outlives the request that triggered it; only the session's
	// fetch timeout bounds it.
	checkCtx := context.WithoutCancel(ctx)
	if cur := h.Session.Identity(); cur == nil || *cur != id || h.Session.Degraded() {
		return h, h.Session.OnAuthChange(checkCtx, &id)
	}
	if !h.Session.Checked() {
		// A concurrent request started the first check.
		if err := h.Session.WaitChecked(ctx); err != nil {
			return h, err
		}
	}
	return h, nil
}

func (m *Manager) Get(userID string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[userID]
	return h, ok
}

// Refresh forces a fresh profile check for userID, bypassing the coalescing
// window. Used after the profile was changed out of band.
func (m *Manager) Refresh(ctx context.Context, userID string) error {
	h, ok := m.Get(userID)
	if !ok {
		return nil
	}
	id := h.Session.Identity()
	if id == nil {
		return nil
	}
	return h.Session.OnAuthChange(context.WithoutCancel(ctx), id)
}

// Release tears the user's session down. Reports whether one existed.
func (m *Manager) Release(userID string) bool {
	m.mu.Lock()
	h, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		h.close()
	}
	return ok
}

// Sweep evicts sessions idle longer than the configured TTL.
func (m *Manager) Sweep() int {
	cutoff := m.cfg.Entitlement.Clock.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var stale []*Handle
	for id, h := range m.sessions {
		if h.lastSeen.Before(cutoff) {
			stale = append(stale, h)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, h := range stale {
		h.close()
	}
	if len(stale) > 0 {
		m.logger.Debug("idle sessions evicted", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	handles := make([]*Handle, 0, len(m.sessions))
	for _, h := range m.sessions {
		handles = append(handles, h)
	}
	m.sessions = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.close()
	}
}
