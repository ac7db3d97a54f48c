package stripewebhooks

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v75"
)

// handleSubscriptionDeleted keeps the paid tier until the paid-through
// period end; ComputeStatus expires it from then on.
func (h *Handler) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription without id", errIgnored)
	}
	p, err := h.findProfile(ctx, userIDFromMetadata(sub.Metadata), sub)
	if err != nil {
		return err
	}
	return h.apply(ctx, p, sub, true)
}
