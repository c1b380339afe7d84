package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	"github.com/yashrajoria/checkout-saga/pkg/broker"
	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

type Topics struct {
	Succeeded string
	Failed    string
}

// SettlementProducer publishes terminal payment outcomes. Messages are keyed
// by order id so every event for one order lands on one partition.
type SettlementProducer struct {
	writer broker.MessageWriter
	topics Topics
	logger *zap.Logger

	// optional SNS fan-out, best effort
	sns         awspkg.SNSPublisher
	snsTopicArn string
}

func NewSettlementProducer(writer broker.MessageWriter, topics Topics, logger *zap.Logger) *SettlementProducer {
	return &SettlementProducer{writer: writer, topics: topics, logger: logger}
}

// WithSNSMirror copies every settlement event to an SNS topic after the
// broker write succeeded. Mirror failures are logged only.
func (p *SettlementProducer) WithSNSMirror(client awspkg.SNSPublisher, topicArn string) *SettlementProducer {
	p.sns = client
	p.snsTopicArn = topicArn
	return p
}

func (p *SettlementProducer) PublishSucceeded(ctx context.Context, evt models.PaymentSucceededEvent) error {
	return p.publish(ctx, p.topics.Succeeded, EventPaymentSucceeded, evt.OrderID, evt)
}

func (p *SettlementProducer) PublishFailed(ctx context.Context, evt models.PaymentFailedEvent) error {
	return p.publish(ctx, p.topics.Failed, EventPaymentFailed, evt.OrderID, evt)
}

func (p *SettlementProducer) publish(ctx context.Context, topic, eventType, orderID string, evt any) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(orderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to publish settlement event",
			zap.String("topic", topic),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s for order %s: %w", eventType, orderID, err)
	}

	p.logger.Info("Settlement event published",
		zap.String("topic", topic),
		zap.String("event_type", eventType),
		zap.String("order_id", orderID),
	)

	if p.sns != nil && p.snsTopicArn != "" {
		if err := p.sns.Publish(ctx, p.snsTopicArn, eventType, data); err != nil {
			p.logger.Warn("SNS mirror publish failed",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (p *SettlementProducer) Close() error {
	return p.writer.Close()
}
