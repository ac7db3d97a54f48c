package plans

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/price"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/repository"
)

// PriceSource lists active recurring prices with their product expanded.
type PriceSource interface {
	ActiveRecurringPrices(ctx context.Context) ([]*stripe.Price, error)
}

type StripePrices struct {
	client price.Client
}

func NewStripePrices(secretKey string) *StripePrices {
	return &StripePrices{client: price.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}}
}

func (s *StripePrices) ActiveRecurringPrices(ctx context.Context) ([]*stripe.Price, error) {
	params := &stripe.PriceListParams{}
	params.Context = ctx
	params.Active = stripe.Bool(true)
	params.Type = stripe.String("recurring")
	params.AddExpand("data.product")

	var out []*stripe.Price
	it := s.client.List(params)
	for it.Next() {
		out = append(out, it.Price())
	}
	return out, it.Err()
}

type SyncResult struct {
	Synced  int `json:"synced"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type Handler struct {
	store     repository.PlanStore
	prices    PriceSource
	productID string
	logger    *zap.Logger
}

// NewHandler builds the plans API. prices may be nil when Stripe is not
// configured; syncing then fails with 503.
func NewHandler(store repository.PlanStore, prices PriceSource, productID string, logger *zap.Logger) *Handler {
	return &Handler{store: store, prices: prices, productID: productID, logger: logger}
}

// Sync upserts a Plan row for every eligible Stripe price. The tier comes
// from price metadata "tier", falling back to "plan".
func (h *Handler) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult

	list, err := h.prices.ActiveRecurringPrices(ctx)
	if err != nil {
		return res, err
	}

	for _, p := range list {
		if !eligible(p, h.productID) {
			res.Skipped++
			continue
		}

		plan := &plans.Plan{
			Name:          displayName(p),
			PriceCents:    p.UnitAmount,
			Currency:      string(p.Currency),
			StripePriceID: p.ID,
			ProductID:     p.Product.ID,
			Interval:      string(p.Recurring.Interval),
			Tier:          tierFromMetadata(p.Metadata),
		}
		created, err := h.store.UpsertPlan(ctx, plan)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Synced++
	}
	return res, nil
}

func eligible(p *stripe.Price, productID string) bool {
	if p == nil || !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
		return false
	}
	if productID != "" && p.Product.ID != productID {
		return false
	}
	return p.Metadata["visible"] != "false"
}

func displayName(p *stripe.Price) string {
	if v := p.Metadata["name"]; v != "" {
		return v
	}
	return p.Product.Name
}

func tierFromMetadata(md map[string]string) string {
	for _, key := range []string{"tier", "plan"} {
		if v := md[key]; v != "" {
			if t := plans.ParseTier(v); plans.IsPaid(t) {
				return string(t)
			}
		}
	}
	return ""
}

func (h *Handler) SyncPlansFromStripe(c *gin.Context) {
	if h.prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe key not configured"})
		return
	}

	res, err := h.Sync(c.Request.Context())
	if err != nil {
		h.logger.Error("plan sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync plans"})
		return
	}

	h.logger.Info("plans synced",
		zap.Int("synced", res.Synced), zap.Int("created", res.Created),
		zap.Int("updated", res.Updated), zap.Int("skipped", res.Skipped))
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.store.ListPlans(c.Request.Context(), h.productID)
	if err != nil {
		h.logger.Error("list plans failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}
	if list == nil {
		list = []plans.Plan{}
	}
	c.JSON(http.StatusOK, list)
}
