package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	"github.com/yashrajoria/checkout-saga/services/payment-service/providers"
	"github.com/yashrajoria/checkout-saga/services/payment-service/services"
)

const (
	EventCheckoutCompleted stripe.EventType = "checkout.session.completed"
	EventCheckoutExpired   stripe.EventType = "checkout.session.expired"

	maxWebhookBody = 64 << 10
)

// OrderIDSource selects where the order id is read from on a checkout
// session.
type OrderIDSource string

const (
	// OrderIDFromRedirectURL parses orderId out of the success/cancel URL.
	OrderIDFromRedirectURL OrderIDSource = "redirect_url"
	// OrderIDFromMetadata reads metadata.order_id, then client_reference_id.
	OrderIDFromMetadata OrderIDSource = "metadata"
)

type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// EventHandler processes one verified gateway event. A returned error makes
// the receiver answer 500 so the gateway redelivers.
type EventHandler func(ctx context.Context, event stripe.Event) error

type WebhookController struct {
	verifier      EventVerifier
	payments      services.PaymentService
	orderIDSource OrderIDSource
	handlers      map[stripe.EventType]EventHandler
	metrics       *awspkg.MetricsClient
	logger        *zap.Logger
}

func NewWebhookController(verifier EventVerifier, payments services.PaymentService, source OrderIDSource, metrics *awspkg.MetricsClient, logger *zap.Logger) *WebhookController {
	if source == "" {
		source = OrderIDFromRedirectURL
	}
	wc := &WebhookController{
		verifier:      verifier,
		payments:      payments,
		orderIDSource: source,
		metrics:       metrics,
		logger:        logger,
	}
	wc.handlers = map[stripe.EventType]EventHandler{
		EventCheckoutCompleted: wc.onCheckoutCompleted,
		EventCheckoutExpired:   wc.onCheckoutExpired,
	}
	return wc
}

// Register adds or replaces the handler for an event type.
func (wc *WebhookController) Register(eventType stripe.EventType, h EventHandler) {
	wc.handlers[eventType] = h
}

// StripeWebhook handles POST /webhook/stripe.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unreadable body"})
		return
	}

	event, err := wc.verifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		wc.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid webhook signature"})
		return
	}

	log := wc.logger.With(zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
	wc.metrics.RecordCountAsync(awspkg.MetricWebhookEvents, map[string]string{"EventType": string(event.Type)})

	handler, ok := wc.handlers[event.Type]
	if !ok {
		log.Info("Unhandled webhook event type")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := handler(c.Request.Context(), event); err != nil {
		log.Error("Webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Webhook processing failed"})
		return
	}
	log.Info("Webhook processed")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (wc *WebhookController) onCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	sess, err := decodeSession(event)
	if err != nil {
		return err
	}
	orderID := wc.orderID(sess, sess.SuccessURL)
	if orderID == "" {
		wc.logger.Warn("Checkout session carries no order id", zap.String("session_id", sess.ID))
		return nil
	}
	return wc.payments.HandleSessionSuccess(ctx, orderID, sess.ID)
}

func (wc *WebhookController) onCheckoutExpired(ctx context.Context, event stripe.Event) error {
	sess, err := decodeSession(event)
	if err != nil {
		return err
	}
	orderID := wc.orderID(sess, sess.CancelURL)
	if orderID == "" {
		wc.logger.Warn("Checkout session carries no order id", zap.String("session_id", sess.ID))
		return nil
	}
	return wc.payments.HandleSessionFailure(ctx, orderID, sess.ID)
}

func (wc *WebhookController) orderID(sess *stripe.CheckoutSession, redirectURL string) string {
	if wc.orderIDSource == OrderIDFromMetadata {
		if id := sess.Metadata["order_id"]; id != "" {
			return id
		}
		return sess.ClientReferenceID
	}
	return providers.OrderIDFromRedirectURL(redirectURL)
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session from %s: %w", event.ID, err)
	}
	return &sess, nil
}
