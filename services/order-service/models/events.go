package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderEventSchemaVersion = 1

// OrderCreatedEvent is published once per created order on the
// order-created topic.
type OrderCreatedEvent struct {
	SchemaVersion int                `json:"schema_version"`
	OrderID       string             `json:"order_id"`
	UserID        string             `json:"user_id"`
	TotalPrice    decimal.Decimal    `json:"total_price"`
	Currency      string             `json:"currency"`
	Items         []OrderCreatedItem `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
}

type OrderCreatedItem struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
}

func NewOrderCreatedEvent(order *Order, currency string) OrderCreatedEvent {
	items := make([]OrderCreatedItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, OrderCreatedItem{
			ProductID: it.ProductID,
			Price:     it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
		})
	}
	return OrderCreatedEvent{
		SchemaVersion: OrderEventSchemaVersion,
		OrderID:       order.ID.String(),
		UserID:        order.UserID,
		TotalPrice:    order.TotalAmount,
		Currency:      currency,
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}
}
