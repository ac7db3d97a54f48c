package stripewebhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/domain/plans"
	"wellness-gatekeeper/internal/domain/users"
	billingstatus "wellness-gatekeeper/internal/infra/stripe"
	"wellness-gatekeeper/internal/repository"
)

func (h *Handler) handleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription without id", errIgnored)
	}
	p, err := h.findProfile(ctx, userIDFromMetadata(sub.Metadata), sub)
	if err != nil {
		return err
	}
	return h.apply(ctx, p, sub, false)
}

// findProfile tries the explicit user id, then the subscription id, then the
// customer id.
func (h *Handler) findProfile(ctx context.Context, userID string, sub *stripe.Subscription) (*users.Profile, error) {
	lookups := []func() (*users.Profile, error){}
	if userID != "" {
		lookups = append(lookups, func() (*users.Profile, error) { return h.profiles.FetchProfile(ctx, userID) })
	}
	if sub.ID != "" {
		lookups = append(lookups, func() (*users.Profile, error) { return h.profiles.FindBySubscriptionID(ctx, sub.ID) })
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		lookups = append(lookups, func() (*users.Profile, error) { return h.profiles.FindByCustomerID(ctx, sub.Customer.ID) })
	}

	for _, lookup := range lookups {
		p, err := lookup()
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrProfileNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no profile for subscription %s", errIgnored, sub.ID)
}

// apply copies the subscription state onto the profile. Statuses that keep
// access grant the price's tier until the current period ends; any other
// status ends access now.
func (h *Handler) apply(ctx context.Context, p *users.Profile, sub *stripe.Subscription, deleted bool) error {
	now := h.clock.Now()

	status := billingstatus.NormalizeStatus(string(sub.Status))
	if deleted && status == billingstatus.StatusNone {
		status = billingstatus.StatusCanceled
	}

	if priceID := activePriceID(sub); priceID != "" {
		tier, err := h.plans.TierForPrice(ctx, priceID)
		switch {
		case errors.Is(err, repository.ErrPlanNotFound):
			h.logger.Warn("unknown stripe price, tier unchanged",
				zap.String("price_id", priceID), zap.String("user_id", p.ID))
		case err != nil:
			return err
		case plans.IsPaid(tier):
			p.Plan = tier
		}
	}

	periodEnd := unixOrNil(sub.CurrentPeriodEnd)
	if status.KeepsAccess() {
		if periodEnd != nil {
			p.SubscriptionEndsAt = periodEnd
		}
	} else {
		end := now
		if periodEnd != nil && periodEnd.Before(now) {
			end = *periodEnd
		}
		p.SubscriptionEndsAt = &end
	}

	subID := sub.ID
	p.SubscriptionID = &subID
	if sub.Customer != nil && sub.Customer.ID != "" {
		cid := sub.Customer.ID
		p.StripeCustomerID = &cid
	}
	raw := string(status)
	p.StripeSubscriptionStatus = &raw
	if p.SubscriptionStartAt == nil {
		start := now
		if s := unixOrNil(sub.StartDate); s != nil {
			start = *s
		}
		p.SubscriptionStartAt = &start
	}

	if err := h.profiles.SaveProfile(ctx, p); err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	if h.sessions != nil {
		if err := h.sessions.Refresh(ctx, p.ID); err != nil {
			h.logger.Warn("session refresh after billing update failed", zap.String("user_id", p.ID), zap.Error(err))
		}
	}

	h.logger.Info("subscription applied",
		zap.String("user_id", p.ID),
		zap.String("plan", string(p.Plan)),
		zap.String("status", raw))
	return nil
}

func activePriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func unixOrNil(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func userIDFromMetadata(md map[string]string) string {
	if md == nil {
		return ""
	}
	return md["user_id"]
}
