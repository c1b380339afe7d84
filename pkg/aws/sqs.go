package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yashrajoria/checkout-saga/pkg/broker"
)

// SQSSource adapts an SQS queue to broker.Source. Commit deletes the message;
// an uncommitted message reappears after the visibility timeout.
type SQSSource struct {
	client            *sqs.Client
	queueURL          string
	waitTime          time.Duration
	visibilityTimeout int32
}

func NewSQSSource(cfg sdkaws.Config, queueURL string, waitTime time.Duration) *SQSSource {
	if waitTime <= 0 || waitTime > 20*time.Second {
		// SQS long polling is capped at 20 seconds
		waitTime = 5 * time.Second
	}
	return &SQSSource{
		client:            sqs.NewFromConfig(cfg),
		queueURL:          queueURL,
		waitTime:          waitTime,
		visibilityTimeout: 30,
	}
}

func (s *SQSSource) Fetch(ctx context.Context) (broker.Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            sdkaws.String(s.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(s.waitTime / time.Second),
		VisibilityTimeout:   s.visibilityTimeout,
	})
	if err != nil {
		return broker.Message{}, fmt.Errorf("receive from %s: %w", s.queueURL, err)
	}
	if len(out.Messages) == 0 || out.Messages[0].Body == nil {
		return broker.Message{}, broker.ErrNoMessage
	}
	m := out.Messages[0]
	return broker.Message{
		Topic:  s.queueURL,
		Value:  []byte(*m.Body),
		Handle: sdkaws.ToString(m.ReceiptHandle),
	}, nil
}

func (s *SQSSource) Commit(ctx context.Context, msg broker.Message) error {
	handle, ok := msg.Handle.(string)
	if !ok || handle == "" {
		return fmt.Errorf("commit: message from %s has no receipt handle", s.queueURL)
	}
	if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      sdkaws.String(s.queueURL),
		ReceiptHandle: sdkaws.String(handle),
	}); err != nil {
		return fmt.Errorf("delete from %s: %w", s.queueURL, err)
	}
	return nil
}

// Lease is the visibility timeout requested on receive.
func (s *SQSSource) Lease() time.Duration {
	return time.Duration(s.visibilityTimeout) * time.Second
}

func (s *SQSSource) Close() error { return nil }

// GetQueueURL resolves a queue name to its URL.
func GetQueueURL(ctx context.Context, cfg sdkaws.Config, queueName string) (string, error) {
	out, err := sqs.NewFromConfig(cfg).GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: sdkaws.String(queueName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL: %w", err)
	}
	return sdkaws.ToString(out.QueueUrl), nil
}
