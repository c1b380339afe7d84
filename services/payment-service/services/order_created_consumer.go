package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	"github.com/yashrajoria/checkout-saga/pkg/broker"
	apperrors "github.com/yashrajoria/checkout-saga/services/common/errors"
	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
)

type ConsumerConfig struct {
	// IdleSleep is the pause between loop iterations.
	IdleSleep time.Duration
	// InitialBackoff and MaxBackoff bound the delay after broker or handler
	// failures. The delay doubles per consecutive failure.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CommitTimeout  time.Duration
	// Lease bounds how long a failing delivery is retried in place before it
	// is released for redelivery. Taken from the source when it is
	// broker.Leased; zero means no bound.
	Lease time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		IdleSleep:      100 * time.Millisecond,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		CommitTimeout:  5 * time.Second,
	}
}

// OrderCreatedConsumer turns order-created events into payment intents. A
// message is committed once handled, or once it is known to be poison.
// Handler failures leave it uncommitted and the same delivery is retried,
// until a leased source would hand it to someone else.
type OrderCreatedConsumer struct {
	source   broker.Source
	payments PaymentService
	dlq      broker.MessageWriter
	metrics  *awspkg.MetricsClient
	logger   *zap.Logger
	cfg      ConsumerConfig
}

func NewOrderCreatedConsumer(source broker.Source, payments PaymentService, metrics *awspkg.MetricsClient, logger *zap.Logger, cfg ConsumerConfig) *OrderCreatedConsumer {
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	if l, ok := source.(broker.Leased); ok && cfg.Lease <= 0 {
		cfg.Lease = l.Lease()
	}
	if cfg.Lease > 0 && cfg.MaxBackoff > cfg.Lease/2 {
		cfg.MaxBackoff = cfg.Lease / 2
	}
	return &OrderCreatedConsumer{
		source:   source,
		payments: payments,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// WithDeadLetter parks poison messages on w before they are committed.
func (c *OrderCreatedConsumer) WithDeadLetter(w broker.MessageWriter) *OrderCreatedConsumer {
	c.dlq = w
	return c
}

// Run blocks until ctx is cancelled, then closes the source. A message being
// handled when ctx is cancelled is finished first.
func (c *OrderCreatedConsumer) Run(ctx context.Context) {
	defer func() {
		if err := c.source.Close(); err != nil {
			c.logger.Warn("Failed to close order-created source", zap.Error(err))
		}
		c.logger.Info("Order-created consumer stopped")
	}()

	c.logger.Info("Order-created consumer started")
	fetchBackoff := broker.NewBackoff(c.cfg.InitialBackoff, c.cfg.MaxBackoff)
	retryBackoff := broker.NewBackoff(c.cfg.InitialBackoff, c.cfg.MaxBackoff)

	var (
		pending  *broker.Message
		leasedAt time.Time
	)
	for ctx.Err() == nil {
		if pending == nil {
			msg, err := c.source.Fetch(ctx)
			switch {
			case err == nil:
				fetchBackoff.Reset()
				pending = &msg
				leasedAt = time.Now()
			case ctx.Err() != nil:
				return
			case errors.Is(err, broker.ErrNoMessage):
				c.sleep(ctx, c.cfg.IdleSleep)
				continue
			default:
				delay := fetchBackoff.Next()
				c.logger.Error("Broker fetch failed", zap.Duration("retry_in", delay), zap.Error(err))
				c.sleep(ctx, delay)
				continue
			}
		}

		if !c.handle(ctx, *pending) {
			delay := retryBackoff.Next()
			if c.cfg.Lease > 0 && time.Since(leasedAt)+delay >= c.cfg.Lease {
				c.logger.Warn("Order-created message lease expiring, releasing for redelivery",
					zap.Int("partition", pending.Partition),
					zap.Int64("offset", pending.Offset),
					zap.Duration("lease", c.cfg.Lease),
				)
				pending = nil
				c.sleep(ctx, delay)
				continue
			}
			c.logger.Warn("Order-created message left uncommitted, retrying",
				zap.Int("partition", pending.Partition),
				zap.Int64("offset", pending.Offset),
				zap.Duration("retry_in", delay),
			)
			c.sleep(ctx, delay)
			continue
		}
		pending = nil
		retryBackoff.Reset()
		c.sleep(ctx, c.cfg.IdleSleep)
	}
}

// handle reports whether msg is done with (committed or dropped).
func (c *OrderCreatedConsumer) handle(ctx context.Context, msg broker.Message) bool {
	var evt models.OrderCreatedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return c.reject(ctx, msg, err)
	}
	if err := evt.Validate(); err != nil {
		return c.reject(ctx, msg, err)
	}

	log := c.logger.With(
		zap.String("order_id", evt.OrderID),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	// shutdown must not abort a half written payment
	resp, err := c.payments.CreatePaymentIntent(context.WithoutCancel(ctx), models.CreatePaymentIntentRequest{
		OrderID:  evt.OrderID,
		UserID:   evt.UserID,
		Amount:   evt.TotalPrice,
		Currency: evt.Currency,
	})
	if err != nil {
		if apperrors.StatusCode(err) == http.StatusBadRequest {
			return c.reject(ctx, msg, err)
		}
		log.Error("Payment intent creation failed", zap.Error(err))
		c.metrics.RecordCountAsync(awspkg.MetricHandlerErrors, map[string]string{"Consumer": "order-created"})
		return false
	}
	if !resp.Success {
		log.Warn("Payment intent not opened, payment left pending", zap.String("reason", resp.ErrorMessage))
	} else {
		log.Info("Payment intent opened", zap.String("session_id", resp.PaymentIntentID))
	}

	c.commit(ctx, msg)
	c.metrics.RecordCountAsync(awspkg.MetricMessagesProcessed, map[string]string{"Consumer": "order-created"})
	return true
}

// reject drops a message that can never succeed so it cannot block the
// partition.
func (c *OrderCreatedConsumer) reject(ctx context.Context, msg broker.Message, cause error) bool {
	c.logger.Error("Poison order-created message, skipping",
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.ByteString("payload", msg.Value),
		zap.Error(cause),
	)
	c.metrics.RecordCountAsync(awspkg.MetricPoisonMessages, map[string]string{"Consumer": "order-created"})

	if c.dlq != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CommitTimeout)
		err := c.dlq.WriteMessages(dctx, kafka.Message{
			Key:   msg.Key,
			Value: msg.Value,
			Headers: []kafka.Header{
				{Key: "error", Value: []byte(cause.Error())},
				{Key: "source_topic", Value: []byte(msg.Topic)},
				{Key: "source_partition", Value: []byte(strconv.Itoa(msg.Partition))},
				{Key: "source_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			},
		})
		cancel()
		if err != nil {
			c.logger.Error("Failed to park poison message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}

	c.commit(ctx, msg)
	return true
}

// commit failures are logged only. The next successful commit on the
// partition covers this offset, and a redelivery is tolerated downstream.
func (c *OrderCreatedConsumer) commit(ctx context.Context, msg broker.Message) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CommitTimeout)
	defer cancel()
	if err := c.source.Commit(cctx, msg); err != nil {
		c.logger.Error("Commit failed",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

func (c *OrderCreatedConsumer) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
