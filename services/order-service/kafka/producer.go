package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yashrajoria/checkout-saga/pkg/broker"
	"github.com/yashrajoria/checkout-saga/services/order-service/models"
)

// OrderEventProducer writes order events. Messages carry their own topic and
// are unkeyed, so the writer spreads them by least bytes.
type OrderEventProducer struct {
	writer broker.MessageWriter
	topic  string
	logger *zap.Logger
}

func NewOrderEventProducer(writer broker.MessageWriter, orderCreatedTopic string, logger *zap.Logger) *OrderEventProducer {
	return &OrderEventProducer{writer: writer, topic: orderCreatedTopic, logger: logger}
}

func (p *OrderEventProducer) Topic() string {
	return p.topic
}

func (p *OrderEventProducer) PublishOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order-created %s: %w", evt.OrderID, err)
	}
	if err := p.Publish(ctx, p.topic, "", data); err != nil {
		return err
	}
	p.logger.Info("order-created published",
		zap.String("order_id", evt.OrderID),
		zap.String("total_price", evt.TotalPrice.StringFixed(2)),
		zap.String("topic", p.topic))
	return nil
}

// Publish writes one message and returns once the broker acknowledged it.
func (p *OrderEventProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	msg := kafka.Message{Topic: topic, Value: value}
	if key != "" {
		msg.Key = []byte(key)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *OrderEventProducer) Close() error {
	p.logger.Info("closing order event writer", zap.String("topic", p.topic))
	return p.writer.Close()
}
