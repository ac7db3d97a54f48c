package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/repository/repotest"
)

type fakePrices struct {
	list []*stripe.Price
	err  error
}

func (f fakePrices) ActiveRecurringPrices(context.Context) ([]*stripe.Price, error) {
	return f.list, f.err
}

func recurring(id, productID string, cents int64, md map[string]string) *stripe.Price {
	return &stripe.Price{
		ID:         id,
		Active:     true,
		UnitAmount: cents,
		Currency:   stripe.CurrencyUSD,
		Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth},
		Product:    &stripe.Product{ID: productID, Active: true, Name: "Wellness"},
		Metadata:   md,
	}
}

func TestSync_FiltersAndUpserts(t *testing.T) {
	store := repotest.NewPlans(plans.Plan{StripePriceID: "price_premium", Tier: "premium"})
	oneOff := recurring("price_once", "prod_1", 100, nil)
	oneOff.Recurring = nil
	inactiveProduct := recurring("price_old", "prod_1", 100, nil)
	inactiveProduct.Product.Active = false

	h := NewHandler(store, fakePrices{list: []*stripe.Price{
		recurring("price_premium", "prod_1", 999, map[string]string{"tier": "premium"}),
		recurring("price_pro", "prod_1", 1999, map[string]string{"plan": "pro", "name": "Pro Monthly"}),
		recurring("price_hidden", "prod_1", 500, map[string]string{"visible": "false"}),
		recurring("price_other", "prod_2", 500, nil),
		oneOff,
		inactiveProduct,
	}}, "prod_1", zap.NewNop())

	res, err := h.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 2, Created: 1, Updated: 1, Skipped: 4}, res)

	tier, err := store.TierForPrice(context.Background(), "price_pro")
	require.NoError(t, err)
	assert.Equal(t, plans.TierPro, tier)

	list, err := store.ListPlans(context.Background(), "prod_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Wellness", list[0].Name)
	assert.Equal(t, "Pro Monthly", list[1].Name)
	assert.Equal(t, "month", list[1].Interval)
}

func TestSync_UnknownTierGrantsNothing(t *testing.T) {
	store := repotest.NewPlans()
	h := NewHandler(store, fakePrices{list: []*stripe.Price{
		recurring("price_x", "prod_1", 100, map[string]string{"tier": "platinum"}),
	}}, "", zap.NewNop())

	_, err := h.Sync(context.Background())
	require.NoError(t, err)

	tier, err := store.TierForPrice(context.Background(), "price_x")
	require.NoError(t, err)
	assert.Equal(t, plans.TierFree, tier)
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/plans", h.ListPlans)
	r.POST("/admin/sync-plans", h.SyncPlansFromStripe)
	return r
}

func TestSyncPlansFromStripe_NotConfigured(t *testing.T) {
	r := newRouter(NewHandler(repotest.NewPlans(), nil, "", zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/sync-plans", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSyncPlansFromStripe_SourceError(t *testing.T) {
	r := newRouter(NewHandler(repotest.NewPlans(), fakePrices{err: errors.New("stripe down")}, "", zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/sync-plans", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListPlans(t *testing.T) {
	store := repotest.NewPlans()
	h := NewHandler(store, fakePrices{list: []*stripe.Price{
		recurring("price_premium", "prod_1", 999, map[string]string{"tier": "premium"}),
	}}, "", zap.NewNop())
	r := newRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/sync-plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []plans.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "price_premium", got[0].StripePriceID)
	assert.Equal(t, "premium", got[0].Tier)
}

func TestListPlans_EmptyIsArray(t *testing.T) {
	r := newRouter(NewHandler(repotest.NewPlans(), nil, "", zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
