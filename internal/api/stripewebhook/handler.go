package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/subscription"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/repository"
)

const maxBodyBytes = 65536

// errIgnored marks events that are valid but concern nothing we track.
// They are acknowledged so Stripe stops retrying.
var errIgnored = errors.New("event ignored")

// SubscriptionSource loads a subscription with its items.
type SubscriptionSource interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type StripeSubscriptions struct {
	client subscription.Client
}

func NewStripeSubscriptions(secretKey string) *StripeSubscriptions {
	return &StripeSubscriptions{client: subscription.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}}
}

func (s *StripeSubscriptions) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return s.client.Get(id, params)
}

// Refresher pushes a profile change to a live session, if any.
type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

type Handler struct {
	secret   string
	profiles repository.ProfileStore
	plans    repository.PlanStore
	subs     SubscriptionSource
	sessions Refresher
	clock    clock.Clock
	logger   *zap.Logger
}

func NewHandler(secret string, profiles repository.ProfileStore, plans repository.PlanStore, subs SubscriptionSource, sessions Refresher, clk clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{
		secret:   secret,
		profiles: profiles,
		plans:    plans,
		subs:     subs,
		sessions: sessions,
		clock:    clk,
		logger:   logger,
	}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.logger.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	ctx := c.Request.Context()
	log := h.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse session"})
			return
		}
		err = h.handleCheckoutSessionCompleted(ctx, &session)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		err = h.handleSubscriptionUpdated(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		err = h.handleSubscriptionDeleted(ctx, &sub)

	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	switch {
	case errors.Is(err, errIgnored):
		log.Info("stripe event ignored", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case err != nil:
		// 5xx so Stripe retries.
		log.Error("stripe event failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	}
}
