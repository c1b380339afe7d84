package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yashrajoria/checkout-saga/services/common/validation"
)

// CurrentSchemaVersion is the newest order-created layout this consumer
// understands. Version 0 is a producer that predates the field.
const CurrentSchemaVersion = 1

var ErrInvalidEvent = errors.New("invalid order-created event")

type OrderCreatedItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Size      string          `json:"size,omitempty"`
}

// OrderCreatedEvent is consumed from the order-created topic.
type OrderCreatedEvent struct {
	SchemaVersion int                `json:"schema_version" validate:"min=0,max=1"`
	OrderID       string             `json:"order_id" validate:"required"`
	UserID        string             `json:"user_id"`
	TotalPrice    decimal.Decimal    `json:"total_price" validate:"positive_decimal"`
	Currency      string             `json:"currency,omitempty" validate:"omitempty,alpha,len=3"`
	Items         []OrderCreatedItem `json:"items" validate:"dive"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Validate checks the event against its validate tags. The schema_version
// bound tracks CurrentSchemaVersion.
func (e OrderCreatedEvent) Validate() error {
	if err := validation.Struct(e); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}

type PaymentSucceededEvent struct {
	OrderID         string          `json:"order_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaidAt          time.Time       `json:"paid_at"`
}

type PaymentFailedEvent struct {
	OrderID  string    `json:"order_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// CreatePaymentIntentRequest is accepted both from the broker consumer and
// from POST /payments.
type CreatePaymentIntentRequest struct {
	OrderID  string          `json:"orderId" binding:"required" validate:"required"`
	UserID   string          `json:"userId"`
	Amount   decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Currency string          `json:"currency" validate:"omitempty,alpha,len=3"`
}

type PaymentIntentResponse struct {
	Success         bool   `json:"success"`
	PaymentID       string `json:"paymentId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	CheckoutURL     string `json:"checkoutUrl,omitempty"`
	Status          string `json:"status,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}
