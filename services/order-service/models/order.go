package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsCancellable is false once the order has left the warehouse.
func (s OrderStatus) IsCancellable() bool {
	return s != OrderStatusShipped && s != OrderStatusDelivered
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID          string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address"`
	PaymentMethod   string          `gorm:"type:varchar(50)" json:"payment_method"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// BeforeCreate assigns the id and the human readable order number so both
// are known before the row is written.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber(time.Now())
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}

// NewOrderNumber formats ORD-YYYYMMDD-HHMMSS-xxxxxxxx.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102-150405") + "-" + uuid.New().String()[:8]
}

// OrderItem is a snapshot of a cart line. Items are never updated after the
// order is written.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   string          `gorm:"type:varchar(64);not null" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`
	ImageURL    string          `gorm:"type:text" json:"image_url,omitempty"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	Size        string          `gorm:"type:varchar(20)" json:"size,omitempty"`
	Color       string          `gorm:"type:varchar(30)" json:"color,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OutboxMessage is an event written in the same transaction as the order
// and published later by the relay.
type OutboxMessage struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Topic     string     `gorm:"type:varchar(255);not null"`
	Key       string     `gorm:"type:varchar(255)"`
	Payload   []byte     `gorm:"type:bytea;not null"`
	Attempts  int        `gorm:"not null;default:0"`
	LastError string     `gorm:"type:text"`
	SentAt    *time.Time `gorm:"index"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
