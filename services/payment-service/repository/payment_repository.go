package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
)

// PaymentRepository is the payment store. Lookups by order return
// gorm.ErrRecordNotFound when no row exists.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	// AttachSession records the gateway session and promotes a pending row
	// to processing. A row that already settled keeps its status.
	AttachSession(ctx context.Context, id uuid.UUID, sessionID, checkoutURL string) error
	// Transition applies updates only while the row is in one of the from
	// statuses and reports whether a row matched.
	Transition(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, updates map[string]interface{}) (bool, error)
	FindLatestByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) AttachSession(ctx context.Context, id uuid.UUID, sessionID, checkoutURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"session_id":   sessionID,
			"checkout_url": checkoutURL,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				models.PaymentStatusPending, models.PaymentStatusProcessing),
		}).Error
}

func (r *gormPaymentRepo) Transition(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// FindLatestByOrderID picks the most recent attempt when redelivery created
// several rows for one order.
func (r *gormPaymentRepo) FindLatestByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
