package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// CanTransitionTo reports whether next keeps the status forward-only. A
// terminal status may only be re-set to itself.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return true
	case PaymentStatusProcessing:
		return next != PaymentStatusPending
	default:
		return next == s
	}
}

// Payment is one checkout attempt for an order. OrderID is not unique: a
// redelivered order-created event produces a second row.
type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     string          `gorm:"type:varchar(64);not null;index" json:"order_id"`
	UserID      string          `gorm:"type:varchar(64);index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status      PaymentStatus   `gorm:"type:varchar(20);not null" json:"status"`
	SessionID   *string         `gorm:"type:varchar(255);index" json:"session_id,omitempty"`
	CheckoutURL *string         `gorm:"type:text" json:"checkout_url,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	FailedAt    *time.Time      `json:"failed_at,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StatusesLeadingTo lists every status from which target may be entered.
func StatusesLeadingTo(target PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed} {
		if s.CanTransitionTo(target) {
			out = append(out, s)
		}
	}
	return out
}
