package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adminapi "wellness-gatekeeper/internal/api/admin"
	"wellness-gatekeeper/internal/api/gatekeeper"
	"wellness-gatekeeper/internal/api/plans"
	stripewebhooks "wellness-gatekeeper/internal/api/stripewebhook"
	"wellness-gatekeeper/internal/api/users"
	"wellness-gatekeeper/internal/auth"
	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/domain/access"
	domainplans "wellness-gatekeeper/internal/domain/plans"
	domainusers "wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/metrics"
	"wellness-gatekeeper/internal/repository/repotest"
	"wellness-gatekeeper/internal/session"
)

const jwtSecret = "routes-secret"

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            sub,
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func newServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewManual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	profiles := repotest.NewProfiles(
		&domainusers.Profile{ID: "user", OnboardingCompleted: true, Role: domainusers.RoleUser, Plan: domainplans.TierPro},
		&domainusers.Profile{ID: "admin", OnboardingCompleted: true, Role: domainusers.RoleAdmin},
	)
	planStore := repotest.NewPlans()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	manager := session.NewManager(session.ManagerConfig{
		Entitlement: session.EntitlementConfig{Store: profiles, Clock: clk, Metrics: m},
	})
	t.Cleanup(manager.Close)

	r := gin.New()
	r.Use(m.GinMiddleware())
	RegisterRoutes(r, Deps{
		Verifier:   auth.NewHMACVerifier(jwtSecret),
		Sessions:   manager,
		Profiles:   profiles,
		Logger:     zap.NewNop(),
		Users:      users.NewHandler(profiles, manager, clk, 7*24*time.Hour, zap.NewNop()),
		Gatekeeper: gatekeeper.NewHandler(manager, zap.NewNop()),
		Admin:      adminapi.NewHandler(profiles, access.DefaultCatalog(), clk, zap.NewNop()),
		Plans:      plans.NewHandler(planStore, nil, "", zap.NewNop()),
		Webhook:    stripewebhooks.NewHandler("", profiles, planStore, nil, manager, clk, zap.NewNop()),
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return r
}

func call(h http.Handler, method, path, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_PublicSurface(t *testing.T) {
	srv := newServer(t)

	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/plans", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, call(srv, http.MethodPost, "/webhook", "").Code)

	rec := call(srv, http.MethodGet, "/access/route?path=/dashboard", "")
	assert.JSONEq(t, `{"decision":"redirect","redirect_to":"/login"}`, rec.Body.String())

	rec = call(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{code="200",method="GET",path="/health"} 1`)
}

func TestRoutes_Authenticated(t *testing.T) {
	srv := newServer(t)
	userTok := token(t, "user")

	assert.Equal(t, http.StatusUnauthorized, call(srv, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/me", userTok).Code)
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/me/export", userTok).Code)
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/access/features/priority_coaching", userTok).Code)

	rec := call(srv, http.MethodGet, "/access/route?path=/login", userTok)
	assert.JSONEq(t, `{"decision":"redirect","redirect_to":"/dashboard"}`, rec.Body.String())
}

func TestRoutes_AdminRequiresRole(t *testing.T) {
	srv := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, call(srv, http.MethodGet, "/admin/users", "").Code)
	assert.Equal(t, http.StatusForbidden, call(srv, http.MethodGet, "/admin/users", token(t, "user")).Code)

	adminTok := token(t, "admin")
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/admin/users", adminTok).Code)
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/admin/stats", adminTok).Code)
	assert.Equal(t, http.StatusOK, call(srv, http.MethodGet, "/admin/users/user", adminTok).Code)
	assert.Equal(t, http.StatusServiceUnavailable, call(srv, http.MethodPost, "/admin/sync-plans", adminTok).Code)
}
