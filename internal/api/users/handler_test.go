package users

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/app/http/middleware"
	"wellness-gatekeeper/internal/auth"
	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository/repotest"
	"wellness-gatekeeper/internal/session"
)

const trialLength = 7 * 24 * time.Hour

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeVerifier map[string]access.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (access.Identity, error) {
	id, ok := f[token]
	if !ok {
		return access.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

var verifier = fakeVerifier{
	"u1-token": {ID: "u1", Email: "u1@example.com", EmailVerified: true},
}

type fixture struct {
	router   *gin.Engine
	profiles *repotest.Profiles
	manager  *session.Manager
}

func newFixture(t *testing.T, seed ...*users.Profile) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	profiles := repotest.NewProfiles(seed...)
	clk := clock.NewManual(now)
	manager := session.NewManager(session.ManagerConfig{
		Entitlement: session.EntitlementConfig{Store: profiles, Clock: clk},
	})
	t.Cleanup(manager.Close)

	h := NewHandler(profiles, manager, clk, trialLength, zap.NewNop())
	r := gin.New()
	g := r.Group("/", middleware.AuthMiddleware(verifier), middleware.WithSession(manager, zap.NewNop()))
	g.GET("/me", h.GetCurrentUser)
	g.PUT("/me/onboarding", h.CompleteOnboarding)
	g.GET("/me/export", middleware.RequireFeature(access.FeatureDataExport), h.ExportData)

	return &fixture{router: r, profiles: profiles, manager: manager}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer u1-token")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeMe(t *testing.T, rec *httptest.ResponseRecorder) MeResponse {
	t.Helper()
	var me MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	return me
}

func TestGetCurrentUser_WithoutProfile(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, rec.Code)

	me := decodeMe(t, rec)
	assert.Equal(t, "u1", me.User.ID)
	assert.True(t, me.User.EmailVerified)
	assert.Nil(t, me.Profile)
	assert.Equal(t, plans.TierFree, me.Billing.Plan)
	assert.True(t, me.Access.Status.IsExpired)
}

func TestGetCurrentUser_Subscribed(t *testing.T) {
	subID, status := "sub_1", "active"
	ends := now.Add(10 * 24 * time.Hour)
	f := newFixture(t, &users.Profile{
		ID: "u1", DisplayName: "Ana", OnboardingCompleted: true, Plan: plans.TierPro,
		SubscriptionID: &subID, StripeSubscriptionStatus: &status, SubscriptionEndsAt: &ends,
	})

	me := decodeMe(t, f.do(http.MethodGet, "/me", ""))

	require.NotNil(t, me.Profile)
	assert.Equal(t, "Ana", me.Profile.DisplayName)
	require.NotNil(t, me.Billing.Subscription)
	assert.Equal(t, "active", me.Billing.Subscription.Status)
	assert.Nil(t, me.Billing.Trial)
	assert.True(t, me.Access.Status.IsSubscribed)
	assert.Equal(t, 10, me.Access.Status.DaysRemaining)
	assert.Contains(t, me.Access.Capabilities, access.FeatureDataExport)
}

func TestCompleteOnboarding_StartsTrial(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/me/onboarding", `{"display_name":"Ana","goal":"run a 10k"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	me := decodeMe(t, rec)
	require.NotNil(t, me.Profile)
	assert.True(t, me.Profile.OnboardingCompleted)
	assert.Equal(t, plans.TierTrial, me.Billing.Plan)
	require.NotNil(t, me.Billing.Trial)
	assert.Equal(t, 7, me.Billing.Trial.DaysLeft)
	assert.True(t, me.Access.Status.IsTrialActive)

	stored, err := f.profiles.FetchProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", stored.Email)
	assert.Equal(t, users.RoleUser, stored.Role)
	require.NotNil(t, stored.TrialEndsAt)
	assert.True(t, stored.TrialEndsAt.Equal(now.Add(trialLength)))

	h, ok := f.manager.Get("u1")
	require.True(t, ok)
	snap := h.Session.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.True(t, snap.Status.IsTrialActive)
	assert.Equal(t, access.Allow(), f.manager.Gate().Decide(snap.RouteInput("/dashboard")))
}

func TestCompleteOnboarding_NoSecondTrial(t *testing.T) {
	ended := now.Add(-24 * time.Hour)
	f := newFixture(t, &users.Profile{ID: "u1", Plan: plans.TierTrial, TrialEndsAt: &ended})

	rec := f.do(http.MethodPut, "/me/onboarding", `{"display_name":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	me := decodeMe(t, rec)
	assert.True(t, me.Access.Status.IsExpired)
	require.NotNil(t, me.Billing.Trial)
	assert.Equal(t, 0, me.Billing.Trial.DaysLeft)
}

func TestCompleteOnboarding_Validation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/me/onboarding", `{"goal":"x"}`).Code)
	long := strings.Repeat("a", 81)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/me/onboarding", `{"display_name":"`+long+`"}`).Code)
}

func TestCompleteOnboarding_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.profiles.Err = errors.New("db down")

	rec := f.do(http.MethodPut, "/me/onboarding", `{"display_name":"Ana"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportData(t *testing.T) {
	t.Run("trial is paywalled", func(t *testing.T) {
		ends := now.Add(24 * time.Hour)
		f := newFixture(t, &users.Profile{ID: "u1", OnboardingCompleted: true, Plan: plans.TierTrial, TrialEndsAt: &ends})

		rec := f.do(http.MethodGet, "/me/export", "")
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("pro exports", func(t *testing.T) {
		f := newFixture(t, &users.Profile{ID: "u1", DisplayName: "Ana", OnboardingCompleted: true, Plan: plans.TierPro})

		rec := f.do(http.MethodGet, "/me/export", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "profile-export.json")

		var out ExportResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.NotNil(t, out.Profile)
		assert.Equal(t, "Ana", out.Profile.DisplayName)
		assert.True(t, out.Status.IsSubscribed)
		assert.True(t, out.Status.Unlimited)
	})
}
