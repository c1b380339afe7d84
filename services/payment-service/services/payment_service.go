package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	apperrors "github.com/yashrajoria/checkout-saga/services/common/errors"
	"github.com/yashrajoria/checkout-saga/services/common/validation"
	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
	"github.com/yashrajoria/checkout-saga/services/payment-service/providers"
	"github.com/yashrajoria/checkout-saga/services/payment-service/repository"
)

const FailureReason = "Payment cancelled or failed"

// SettlementPublisher announces terminal payment outcomes.
type SettlementPublisher interface {
	PublishSucceeded(ctx context.Context, evt models.PaymentSucceededEvent) error
	PublishFailed(ctx context.Context, evt models.PaymentFailedEvent) error
}

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.PaymentIntentResponse, error)
	HandleSuccess(ctx context.Context, orderID string) error
	HandleFailure(ctx context.Context, orderID string) error
	// HandleSessionSuccess and HandleSessionFailure settle the attempt that
	// owns sessionID, falling back to the newest attempt for the order.
	HandleSessionSuccess(ctx context.Context, orderID, sessionID string) error
	HandleSessionFailure(ctx context.Context, orderID, sessionID string) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
}

type Options struct {
	DefaultCurrency string
	// DedupeByOrder reuses a live payment for the order instead of opening a
	// second checkout session on redelivery.
	DedupeByOrder bool
	Now           func() time.Time
}

type paymentService struct {
	repo      repository.PaymentRepository
	gateway   providers.CheckoutProvider
	publisher SettlementPublisher
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	opts      Options
}

func NewPaymentService(
	repo repository.PaymentRepository,
	gateway providers.CheckoutProvider,
	publisher SettlementPublisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
	opts Options,
) PaymentService {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "usd"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &paymentService{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// CreatePaymentIntent records a pending payment and opens a checkout session
// for it. A gateway failure is reported in the response, not as an error:
// the row stays pending and nothing is published. Store failures are
// returned so a broker caller leaves the message uncommitted.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	if err := validation.Struct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentRequest, err)
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}

	if s.opts.DedupeByOrder {
		if resp, ok := s.existingIntent(ctx, req.OrderID); ok {
			return resp, nil
		}
	}

	payment := &models.Payment{
		OrderID:  req.OrderID,
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: currency,
		Status:   models.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment for order %s: %w", req.OrderID, err)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, providers.CheckoutRequest{
		OrderID:  req.OrderID,
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: currency,
	})
	if err != nil {
		s.logger.Error("Checkout session creation failed",
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", payment.ID.String()),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err),
		)
		s.metrics.RecordCountAsync(awspkg.MetricPaymentGatewayError, map[string]string{"Gateway": s.gateway.Name()})
		return &models.PaymentIntentResponse{
			Success:      false,
			PaymentID:    payment.ID.String(),
			Status:       string(models.PaymentStatusPending),
			ErrorMessage: err.Error(),
		}, nil
	}

	if err := s.repo.AttachSession(ctx, payment.ID, sess.ID, sess.URL); err != nil {
		return nil, fmt.Errorf("attach session %s to payment %s: %w", sess.ID, payment.ID, err)
	}

	s.logger.Info("Payment intent created",
		zap.String("order_id", req.OrderID),
		zap.String("payment_id", payment.ID.String()),
		zap.String("session_id", sess.ID),
	)
	s.metrics.RecordCountAsync(awspkg.MetricPaymentIntents, nil)

	return &models.PaymentIntentResponse{
		Success:         true,
		PaymentID:       payment.ID.String(),
		PaymentIntentID: sess.ID,
		ClientSecret:    sess.ID,
		CheckoutURL:     sess.URL,
		Status:          string(models.PaymentStatusProcessing),
	}, nil
}

// existingIntent returns the live attempt for an order, if any. Pending rows
// (gateway failed earlier) and failed rows get a fresh attempt.
func (s *paymentService) existingIntent(ctx context.Context, orderID string) (*models.PaymentIntentResponse, bool) {
	p, err := s.repo.FindLatestByOrderID(ctx, orderID)
	if err != nil || p.SessionID == nil {
		return nil, false
	}
	if p.Status != models.PaymentStatusProcessing && p.Status != models.PaymentStatusSuccess {
		return nil, false
	}
	s.logger.Info("Reusing existing payment for order",
		zap.String("order_id", orderID),
		zap.String("payment_id", p.ID.String()),
	)
	resp := &models.PaymentIntentResponse{
		Success:         true,
		PaymentID:       p.ID.String(),
		PaymentIntentID: *p.SessionID,
		ClientSecret:    *p.SessionID,
		Status:          string(p.Status),
	}
	if p.CheckoutURL != nil {
		resp.CheckoutURL = *p.CheckoutURL
	}
	return resp, true
}

func (s *paymentService) HandleSuccess(ctx context.Context, orderID string) error {
	return s.HandleSessionSuccess(ctx, orderID, "")
}

func (s *paymentService) HandleFailure(ctx context.Context, orderID string) error {
	return s.HandleSessionFailure(ctx, orderID, "")
}

func (s *paymentService) HandleSessionSuccess(ctx context.Context, orderID, sessionID string) error {
	p, ok, err := s.resolve(ctx, orderID, sessionID)
	if err != nil || !ok {
		return err
	}

	paidAt := s.opts.Now().UTC()
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}
	applied, err := s.settle(ctx, p, models.PaymentStatusSuccess, map[string]interface{}{
		"status":  models.PaymentStatusSuccess,
		"paid_at": paidAt,
	})
	if err != nil || !applied {
		return err
	}

	evt := models.PaymentSucceededEvent{
		OrderID:         p.OrderID,
		PaymentIntentID: derefString(p.SessionID),
		Amount:          p.Amount,
		Currency:        p.Currency,
		PaidAt:          paidAt,
	}
	if err := s.publisher.PublishSucceeded(ctx, evt); err != nil {
		return fmt.Errorf("publish payment succeeded for order %s: %w", orderID, err)
	}
	s.metrics.RecordCountAsync(awspkg.MetricPaymentSucceeded, nil)
	s.logger.Info("Payment succeeded", zap.String("order_id", orderID), zap.String("payment_id", p.ID.String()))
	return nil
}

func (s *paymentService) HandleSessionFailure(ctx context.Context, orderID, sessionID string) error {
	p, ok, err := s.resolve(ctx, orderID, sessionID)
	if err != nil || !ok {
		return err
	}

	failedAt := s.opts.Now().UTC()
	if p.FailedAt != nil {
		failedAt = *p.FailedAt
	}
	applied, err := s.settle(ctx, p, models.PaymentStatusFailed, map[string]interface{}{
		"status":    models.PaymentStatusFailed,
		"failed_at": failedAt,
	})
	if err != nil || !applied {
		return err
	}

	evt := models.PaymentFailedEvent{
		OrderID:  p.OrderID,
		Reason:   FailureReason,
		FailedAt: failedAt,
	}
	if err := s.publisher.PublishFailed(ctx, evt); err != nil {
		return fmt.Errorf("publish payment failed for order %s: %w", orderID, err)
	}
	s.metrics.RecordCountAsync(awspkg.MetricPaymentFailed, nil)
	s.logger.Info("Payment failed", zap.String("order_id", orderID), zap.String("payment_id", p.ID.String()))
	return nil
}

func (s *paymentService) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := s.repo.FindLatestByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment for order %s: %w", orderID, err)
	}
	return p, nil
}

// resolve picks the attempt an outcome belongs to. Rows that never got a
// session attached are only reachable through the order.
func (s *paymentService) resolve(ctx context.Context, orderID, sessionID string) (*models.Payment, bool, error) {
	if sessionID == "" {
		return s.latest(ctx, orderID)
	}
	p, err := s.repo.FindBySessionID(ctx, sessionID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.latest(ctx, orderID)
	case err != nil:
		return nil, false, fmt.Errorf("find payment for session %s: %w", sessionID, err)
	case p.OrderID != orderID:
		s.logger.Warn("Session belongs to another order, ignoring outcome",
			zap.String("order_id", orderID),
			zap.String("session_id", sessionID),
			zap.String("session_order_id", p.OrderID),
		)
		return nil, false, nil
	}
	return p, true, nil
}

// latest loads the newest payment for the order. A missing payment is not an
// error: the outcome is logged and dropped.
func (s *paymentService) latest(ctx context.Context, orderID string) (*models.Payment, bool, error) {
	p, err := s.repo.FindLatestByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("No payment found for order, ignoring outcome", zap.String("order_id", orderID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find payment for order %s: %w", orderID, err)
	}
	return p, true, nil
}

// settle moves p to target unless that would break forward-only ordering.
// Re-applying the current terminal status is allowed and reported as applied
// so the event is published again.
func (s *paymentService) settle(ctx context.Context, p *models.Payment, target models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	if !p.Status.CanTransitionTo(target) {
		s.logger.Warn("Ignoring out of order payment outcome",
			zap.String("order_id", p.OrderID),
			zap.String("payment_id", p.ID.String()),
			zap.String("current", string(p.Status)),
			zap.String("target", string(target)),
		)
		return false, nil
	}
	applied, err := s.repo.Transition(ctx, p.ID, models.StatusesLeadingTo(target), updates)
	if err != nil {
		return false, fmt.Errorf("update payment %s to %s: %w", p.ID, target, err)
	}
	if !applied {
		s.logger.Warn("Payment settled concurrently, outcome dropped",
			zap.String("order_id", p.OrderID),
			zap.String("payment_id", p.ID.String()),
			zap.String("target", string(target)),
		)
	}
	return applied, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
