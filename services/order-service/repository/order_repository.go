package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/checkout-saga/services/order-service/models"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// WithTx runs fn against a repository bound to one database transaction.
	// Returning an error from fn rolls the transaction back.
	WithTx(ctx context.Context, fn func(tx OrderRepository) error) error
	FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
	FindByIDAndUserID(ctx context.Context, orderID uuid.UUID, userID string) (*models.Order, error)
	// Create inserts the order together with its items.
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus writes Status and CompletedAt only. Items are immutable.
	UpdateStatus(ctx context.Context, order *models.Order) error
	Outbox() OutboxRepository
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) WithTx(ctx context.Context, fn func(tx OrderRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormOrderRepository{db: tx})
	})
}

// FindByUserID retrieves orders for a specific user with pagination
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.Order, int64, error) {
	return r.paginate(ctx, page, limit, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	})
}

// FindAll retrieves all orders with pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	return r.paginate(ctx, page, limit, func(db *gorm.DB) *gorm.DB { return db })
}

func (r *GormOrderRepository) paginate(ctx context.Context, page, limit int, scope func(*gorm.DB) *gorm.DB) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Scopes(scope).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// FindByIDAndUserID retrieves a specific order for a user
func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, orderID uuid.UUID, userID string) (*models.Order, error) {
	var order models.Order

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(order).
		Select("Status", "CompletedAt").
		Updates(order).Error
}

func (r *GormOrderRepository) Outbox() OutboxRepository {
	return &GormOutboxRepository{db: r.db}
}

// OutboxRepository stores events waiting to be relayed to the broker.
type OutboxRepository interface {
	Add(ctx context.Context, msg *models.OutboxMessage) error
	// Pending returns unsent messages, oldest first.
	Pending(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
}

type GormOutboxRepository struct {
	db *gorm.DB
}

func (r *GormOutboxRepository) Add(ctx context.Context, msg *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *GormOutboxRepository) Pending(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	var msgs []models.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *GormOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Update("sent_at", sentAt).Error
}

func (r *GormOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
		}).Error
}
