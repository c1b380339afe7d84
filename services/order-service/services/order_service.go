package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	apperrors "github.com/yashrajoria/checkout-saga/services/common/errors"
	"github.com/yashrajoria/checkout-saga/services/order-service/cart"
	"github.com/yashrajoria/checkout-saga/services/order-service/models"
	repositories "github.com/yashrajoria/checkout-saga/services/order-service/repository"
)

// EventMode selects how order-created reaches the broker.
type EventMode string

const (
	// EventsDirect publishes inside the order transaction, before commit.
	EventsDirect EventMode = "direct"
	// EventsOutbox stores the event in the same transaction as the order and
	// leaves publishing to the OutboxRelay.
	EventsOutbox EventMode = "outbox"
)

type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error
	Topic() string
}

type CreateOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

type Options struct {
	Mode     EventMode
	Currency string
	Now      func() time.Time
}

type OrderService struct {
	orderRepo repositories.OrderRepository
	cart      cart.CartClient
	events    OrderEventPublisher
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	opts      Options
}

func NewOrderService(
	orderRepo repositories.OrderRepository,
	cartClient cart.CartClient,
	events OrderEventPublisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
	opts Options,
) *OrderService {
	if opts.Mode == "" {
		opts.Mode = EventsDirect
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &OrderService{
		orderRepo: orderRepo,
		cart:      cartClient,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// CreateOrder turns the user's cart into a pending order. The order, its
// items and (in outbox mode) the order-created event are written in one
// transaction, and the cart is cleared after commit. In direct mode the
// event is published before commit and is not retracted if the commit
// fails.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*models.Order, error) {
	c, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if c.IsEmpty() {
		return nil, apperrors.ErrEmptyCart
	}
	if err := c.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidCart, err)
	}

	order := s.buildOrder(userID, req, c)
	published := false

	err = s.orderRepo.WithTx(ctx, func(tx repositories.OrderRepository) error {
		if err := tx.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		evt := models.NewOrderCreatedEvent(order, s.opts.Currency)
		if s.opts.Mode == EventsOutbox {
			payload, err := json.Marshal(evt)
			if err != nil {
				return fmt.Errorf("marshal order-created: %w", err)
			}
			if err := tx.Outbox().Add(ctx, &models.OutboxMessage{Topic: s.events.Topic(), Payload: payload}); err != nil {
				return fmt.Errorf("store order-created in outbox: %w", err)
			}
		} else {
			if err := s.events.PublishOrderCreated(ctx, evt); err != nil {
				s.metrics.RecordCountAsync(awspkg.MetricOrderEventPublishKO, map[string]string{"Service": "order-service"})
				return fmt.Errorf("publish order-created: %w", err)
			}
			published = true
		}
		return nil
	})
	if err != nil {
		if published {
			s.logger.Warn("Order rolled back after order-created was published",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		} else {
			s.logger.Error("Order creation failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// the cart lives outside the order transaction, so it is only cleared
	// once the order is durable
	if _, err := s.cart.ClearCart(ctx, userID); err != nil {
		s.logger.Warn("Order created but cart was not cleared",
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.metrics.RecordCountAsync(awspkg.MetricOrdersCreated, map[string]string{"Service": "order-service"})
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("mode", string(s.opts.Mode)))
	return order, nil
}

func (s *OrderService) buildOrder(userID string, req CreateOrderRequest, c *cart.Cart) *models.Order {
	items := make([]models.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			ImageURL:    it.ImageURL,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
			Size:        it.Size,
			Color:       it.Color,
		})
	}
	now := s.opts.Now()
	return &models.Order{
		ID:              uuid.New(),
		OrderNumber:     models.NewOrderNumber(now),
		UserID:          userID,
		TotalAmount:     c.TotalPrice(),
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       now,
		Items:           items,
	}
}

// GetUserOrders retrieves paginated orders for a specific user
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, page, limit int) (*OrderListResponse, error) {
	orders, total, err := s.orderRepo.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return listResponse(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders for all users (admin only)
func (s *OrderService) GetAllOrders(ctx context.Context, page, limit int) (*OrderListResponse, error) {
	orders, total, err := s.orderRepo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return listResponse(orders, total, page, limit), nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperrors.ErrInvalidOrderID
	}

	order, err := s.orderRepo.FindByIDAndUserID(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return order, nil
}

// CancelOrder moves a pending or processing order to cancelled. Cancelling
// an already cancelled order succeeds without writing.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusCancelled {
		return order, nil
	}
	if !order.Status.IsCancellable() {
		return nil, apperrors.ErrOrderNotCancellable
	}

	now := s.opts.Now()
	order.Status = models.OrderStatusCancelled
	order.CompletedAt = &now
	if err := s.orderRepo.UpdateStatus(ctx, order); err != nil {
		s.logger.Error("Failed to cancel order", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.metrics.RecordCountAsync(awspkg.MetricOrdersCancelled, map[string]string{"Service": "order-service"})
	s.logger.Info("Order cancelled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return order, nil
}

func listResponse(orders []models.Order, total int64, page, limit int) *OrderListResponse {
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
