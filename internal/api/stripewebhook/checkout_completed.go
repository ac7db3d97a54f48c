package stripewebhooks

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v75"
)

func (h *Handler) handleCheckoutSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return fmt.Errorf("%w: checkout session %s has no subscription", errIgnored, session.ID)
	}

	sub := session.Subscription
	if h.subs != nil {
		full, err := h.subs.GetSubscription(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("fetch subscription %s: %w", sub.ID, err)
		}
		sub = full
	}

	userID := userIDFromMetadata(sub.Metadata)
	if userID == "" {
		userID = session.ClientReferenceID
	}

	p, err := h.findProfile(ctx, userID, sub)
	if err != nil {
		return err
	}
	if session.Customer != nil && session.Customer.ID != "" {
		id := session.Customer.ID
		p.StripeCustomerID = &id
	}

	return h.apply(ctx, p, sub, false)
}
