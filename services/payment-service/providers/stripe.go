package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeConfig struct {
	SecretKey       string
	SuccessURL      string
	CancelURL       string
	DefaultCurrency string
	// Backend overrides the API backend, used to point at a local stub.
	Backend stripe.Backend
}

// StripeProvider creates Stripe Checkout sessions through its own client
// handle. The package level stripe.Key is never touched.
type StripeProvider struct {
	sessions   *session.Client
	successURL string
	cancelURL  string
	currency   string
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	currency := strings.ToLower(cfg.DefaultCurrency)
	if currency == "" {
		currency = "usd"
	}
	return &StripeProvider{
		sessions:   &session.Client{B: backend, Key: cfg.SecretKey},
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		currency:   currency,
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params, err := p.sessionParams(req)
	if err != nil {
		return nil, err
	}
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session for order %s: %w", req.OrderID, err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) sessionParams(req CheckoutRequest) (*stripe.CheckoutSessionParams, error) {
	successURL, err := WithOrderID(p.successURL, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid success url: %w", err)
	}
	cancelURL, err := WithOrderID(p.cancelURL, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid cancel url: %w", err)
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = p.currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order #" + req.OrderID),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.AddMetadata("order_id", req.OrderID)
	if req.UserID != "" {
		params.AddMetadata("user_id", req.UserID)
	}
	return params, nil
}

// StripeWebhookVerifier checks the Stripe-Signature header against the
// endpoint secret.
type StripeWebhookVerifier struct {
	secret string
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// ConstructEvent verifies and decodes a webhook payload. Events rendered for
// a different API version are accepted; only the fields read downstream
// matter.
func (v *StripeWebhookVerifier) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
