package providers

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

// CheckoutProvider opens a hosted checkout session with an external payment
// gateway. Implementations never retry; the caller decides.
type CheckoutProvider interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type CheckoutRequest struct {
	OrderID  string
	UserID   string
	Amount   decimal.Decimal
	Currency string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// OrderIDParam is the redirect URL query parameter carrying the order id.
const OrderIDParam = "orderId"

// MinorUnits converts a major-unit amount to the gateway's smallest unit,
// rounding half away from zero (10.005 -> 1001).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// WithOrderID appends orderId=<id> to a redirect URL, keeping any query it
// already has.
func WithOrderID(rawURL, orderID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(OrderIDParam, orderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OrderIDFromRedirectURL recovers the order id from a success or cancel URL.
// It returns "" when the URL carries none.
func OrderIDFromRedirectURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(OrderIDParam)
}
