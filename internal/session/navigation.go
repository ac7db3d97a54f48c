package session

import (
	"sync"

	"wellness-gatekeeper/internal/debugreport"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/metrics"
)

// Navigator performs the redirect side effect. Implementations must not
// call back into the supervisor that invoked them.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// NavigationSupervisor applies route gate decisions. A redirect is issued
// once per distinct decision; repeating the same decision is a no-op.
type NavigationSupervisor struct {
	gate     *access.RouteGate
	nav      Navigator
	reporter *debugreport.Reporter
	metrics  *metrics.Metrics

	mu      sync.Mutex
	applied access.Decision
	closed  bool
}

func NewNavigationSupervisor(gate *access.RouteGate, nav Navigator, reporter *debugreport.Reporter, m *metrics.Metrics) *NavigationSupervisor {
	if gate == nil {
		gate = access.NewRouteGate(access.DefaultRouteGateConfig())
	}
	return &NavigationSupervisor{gate: gate, nav: nav, reporter: reporter, metrics: m}
}

// Observe evaluates in and reports the decision plus whether a navigation
// was issued for it. Decisions are computed and applied under one lock so a
// stale snapshot can never navigate after a newer one.
func (n *NavigationSupervisor) Observe(in access.RouteInput) (access.Decision, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	d := n.gate.Decide(in)
	n.metrics.ObserveDecision(d)

	switch d.Kind {
	case access.DecisionPending:
		return d, false
	case access.DecisionAllow:
		n.applied = d
		return d, false
	}

	if n.closed || d.Equal(n.applied) {
		return d, false
	}
	n.applied = d
	if n.nav != nil {
		n.nav.Navigate(d.Path)
	}

	userID := ""
	if in.User != nil {
		userID = in.User.ID
	}
	n.reporter.Report(debugreport.Event{
		Key:     "redirect:" + userID + ":" + d.Path,
		Kind:    "redirect",
		UserID:  userID,
		Message: "redirect issued",
		Fields:  map[string]string{"from": in.Path, "to": d.Path},
	})
	return d, true
}

func (n *NavigationSupervisor) Applied() access.Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.applied
}

// Close makes later observations compute-only.
func (n *NavigationSupervisor) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}
