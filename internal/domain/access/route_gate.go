package access

import (
	"strings"

	"wellness-gatekeeper/internal/domain/users"
)

type RouteGateConfig struct {
	PublicPaths []string
	// AuthLandingPaths redirect an onboarded user to the dashboard.
	AuthLandingPaths []string
	AdminPrefix      string
	LoginPath        string
	VerifyEmailPath  string
	OnboardingPath   string
	DashboardPath    string
}

func DefaultRouteGateConfig() RouteGateConfig {
	return RouteGateConfig{
		PublicPaths: []string{
			"/",
			"/login",
			"/register",
			"/forgot-password",
			"/reset-password",
			"/verify-email",
		},
		AuthLandingPaths: []string{"/login", "/register", "/"},
		AdminPrefix:      "/admin",
		LoginPath:        "/login",
		VerifyEmailPath:  "/verify-email",
		OnboardingPath:   "/onboarding",
		DashboardPath:    "/dashboard",
	}
}

// RouteInput is one snapshot of everything the gate looks at.
type RouteInput struct {
	Initialized bool
	User        *Identity
	Profile     *users.Profile
	Path        string
}

type RouteGate struct {
	cfg     RouteGateConfig
	public  map[string]struct{}
	landing map[string]struct{}
}

// NewRouteGate fills empty config fields from DefaultRouteGateConfig.
func NewRouteGate(cfg RouteGateConfig) *RouteGate {
	def := DefaultRouteGateConfig()
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = def.PublicPaths
	}
	if cfg.AuthLandingPaths == nil {
		cfg.AuthLandingPaths = def.AuthLandingPaths
	}
	if cfg.AdminPrefix == "" {
		cfg.AdminPrefix = def.AdminPrefix
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = def.LoginPath
	}
	if cfg.VerifyEmailPath == "" {
		cfg.VerifyEmailPath = def.VerifyEmailPath
	}
	if cfg.OnboardingPath == "" {
		cfg.OnboardingPath = def.OnboardingPath
	}
	if cfg.DashboardPath == "" {
		cfg.DashboardPath = def.DashboardPath
	}

	return &RouteGate{
		cfg:     cfg,
		public:  pathSet(cfg.PublicPaths),
		landing: pathSet(cfg.AuthLandingPaths),
	}
}

func (g *RouteGate) Config() RouteGateConfig { return g.cfg }

// Decide evaluates the navigation rules in strict priority order; the first
// matching rule wins. It is pure and idempotent.
func (g *RouteGate) Decide(in RouteInput) Decision {
	// 1. Nothing is known yet: never redirect.
	if !in.Initialized {
		return Pending()
	}

	path := NormalizePath(in.Path)

	switch {
	case in.User == nil:
		// 2. Anonymous users only see public pages.
		if !g.IsPublic(path) {
			return RedirectTo(g.cfg.LoginPath)
		}

	case !in.User.EmailVerified:
		// 3. Verification outranks onboarding and role checks.
		if path != g.cfg.VerifyEmailPath {
			return RedirectTo(g.cfg.VerifyEmailPath)
		}

	case in.Profile != nil:
		// 4a. Onboarding first.
		if !in.Profile.OnboardingCompleted {
			if path != g.cfg.OnboardingPath {
				return RedirectTo(g.cfg.OnboardingPath)
			}
			break
		}
		// 4b. Onboarded users skip the auth landing pages. The onboarding
		// route itself is not in this set.
		if _, ok := g.landing[path]; ok {
			return RedirectTo(g.cfg.DashboardPath)
		}
	}

	// 5. Admin area requires the admin role; an unknown profile is not admin.
	if strings.HasPrefix(path, g.cfg.AdminPrefix) && !in.Profile.IsAdmin() {
		return RedirectTo(g.cfg.DashboardPath)
	}

	return Allow()
}

func (g *RouteGate) IsPublic(path string) bool {
	_, ok := g.public[NormalizePath(path)]
	return ok
}

// NormalizePath strips query and fragment, ensures a leading slash and drops
// trailing slashes except for the root.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func pathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[NormalizePath(p)] = struct{}{}
	}
	return set
}
