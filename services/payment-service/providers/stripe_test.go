package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

func stubBackend(t *testing.T, handler http.HandlerFunc) stripe.Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), MinorUnits(decimal.RequireFromString("100.00")))
	assert.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1001), MinorUnits(decimal.RequireFromString("10.005")))
}

func TestWithOrderID_RoundTrip(t *testing.T) {
	u, err := WithOrderID("https://shop.example/checkout/success?ref=email", "ord-1")
	require.NoError(t, err)

	assert.Contains(t, u, "ref=email")
	assert.Equal(t, "ord-1", OrderIDFromRedirectURL(u))
	assert.Empty(t, OrderIDFromRedirectURL("https://shop.example/checkout/success"))
}

func TestStripeProvider_CreateCheckoutSession(t *testing.T) {
	var form map[string]string
	backend := stubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"mode":        r.PostForm.Get("mode"),
			"unit_amount": r.PostForm.Get("line_items[0][price_data][unit_amount]"),
			"currency":    r.PostForm.Get("line_items[0][price_data][currency]"),
			"name":        r.PostForm.Get("line_items[0][price_data][product_data][name]"),
			"success_url": r.PostForm.Get("success_url"),
			"order_meta":  r.PostForm.Get("metadata[order_id]"),
			"client_ref":  r.PostForm.Get("client_reference_id"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_123","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_123"}`))
	})

	p := NewStripeProvider(StripeConfig{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cancel",
		Backend:    backend,
	})

	sess, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{
		OrderID: "ord-42",
		UserID:  "user-1",
		Amount:  decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_123", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", sess.URL)
	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "10000", form["unit_amount"])
	assert.Equal(t, "usd", form["currency"])
	assert.Equal(t, "Order #ord-42", form["name"])
	assert.Equal(t, "https://shop.example/success?orderId=ord-42", form["success_url"])
	assert.Equal(t, "ord-42", form["order_meta"])
	assert.Equal(t, "ord-42", form["client_ref"])
}

func TestStripeProvider_GatewayError(t *testing.T) {
	backend := stubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	})
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_bad", SuccessURL: "https://s", CancelURL: "https://c", Backend: backend})

	sess, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{OrderID: "ord-1", Amount: decimal.NewFromInt(5)})

	assert.Nil(t, sess)
	assert.ErrorContains(t, err, "ord-1")
}

func TestStripeWebhookVerifier(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":"2019-01-01","data":{"object":{"id":"cs_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	evt, err := NewStripeWebhookVerifier("whsec_test").ConstructEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, stripe.EventType("checkout.session.completed"), evt.Type)

	_, err = NewStripeWebhookVerifier("whsec_other").ConstructEvent(signed.Payload, signed.Header)
	assert.Error(t, err)
}
