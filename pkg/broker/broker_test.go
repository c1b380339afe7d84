package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, ParseBrokers(" kafka-1:9092, ,kafka-2:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)

	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ErrNoMessage))
	assert.True(t, IsTimeout(fmt.Errorf("poll: %w", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(errors.New("connection refused")))
}

func TestNewWriter_KeyedUsesHashBalancer(t *testing.T) {
	w := NewWriter(WriterConfig{Brokers: []string{"localhost:9092"}, Topic: "payment-succeeded", Keyed: true})
	defer w.Close()

	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.False(t, w.Async)
	assert.Equal(t, 1, w.BatchSize)
	assert.Equal(t, 5, w.MaxAttempts)
}

func TestNewWriter_UnkeyedUsesLeastBytes(t *testing.T) {
	w := NewWriter(WriterConfig{Brokers: []string{"localhost:9092"}, MaxAttempts: 3})
	defer w.Close()

	assert.IsType(t, &kafka.LeastBytes{}, w.Balancer)
	assert.Equal(t, 3, w.MaxAttempts)
	assert.Empty(t, w.Topic)
}

func TestKafkaSource_CommitRejectsForeignHandle(t *testing.T) {
	s := NewKafkaSource(ReaderConfig{Brokers: []string{"localhost:9092"}, Topic: "order-created", GroupID: "g"})
	defer s.Close()

	err := s.Commit(context.Background(), Message{Offset: 7, Handle: "receipt"})
	assert.Error(t, err)
}
