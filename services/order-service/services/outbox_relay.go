package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	repositories "github.com/yashrajoria/checkout-saga/services/order-service/repository"
)

type MessagePublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// OutboxRelay publishes stored order events. A row is marked sent only after
// the broker acknowledged it, so a crash in between republishes it.
type OutboxRelay struct {
	outbox    repositories.OutboxRepository
	publisher MessagePublisher
	interval  time.Duration
	batchSize int
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	now       func() time.Time
}

func NewOutboxRelay(outbox repositories.OutboxRepository, publisher MessagePublisher, interval time.Duration, batchSize int, metrics *awspkg.MetricsClient, logger *zap.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *OutboxRelay) Run(ctx context.Context) {
	r.logger.Info("Outbox relay started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce publishes up to one batch of pending rows and returns how many
// were sent. It stops at the first publish failure; the failed row and
// everything after it wait for the next pass.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	msgs, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range msgs {
		if err := r.publisher.Publish(ctx, m.Topic, m.Key, m.Payload); err != nil {
			r.metrics.RecordCountAsync(awspkg.MetricOrderEventPublishKO, map[string]string{"Service": "order-service"})
			if markErr := r.outbox.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
				r.logger.Error("Failed to record outbox failure", zap.String("outbox_id", m.ID.String()), zap.Error(markErr))
			}
			return sent, err
		}
		if err := r.outbox.MarkSent(ctx, m.ID, r.now()); err != nil {
			// published but still pending: it goes out again next pass
			r.logger.Error("Failed to mark outbox message sent", zap.String("outbox_id", m.ID.String()), zap.Error(err))
			return sent, err
		}
		sent++
		r.metrics.RecordCountAsync(awspkg.MetricOrderEventsRelayed, map[string]string{"Service": "order-service", "Topic": m.Topic})
	}
	return sent, nil
}
