package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// WriterConfig configures a synchronous, fully acknowledged kafka-go writer.
type WriterConfig struct {
	Brokers []string
	// Topic is optional. When empty every message must carry its own topic.
	Topic string
	// Keyed selects the hash balancer so all messages with one key land on
	// one partition. Unkeyed writers spread by least bytes.
	Keyed        bool
	MaxAttempts  int
	WriteTimeout time.Duration
}

// NewWriter builds a writer that only returns once every in-sync replica has
// acknowledged the message. Messages are sent one per batch, which together
// with the synchronous write keeps at most one request in flight.
func NewWriter(cfg WriterConfig) *kafka.Writer {
	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.Keyed {
		balancer = &kafka.Hash{}
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               balancer,
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		BatchSize:              1,
		MaxAttempts:            attempts,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}
}

// ReaderConfig configures a consumer-group reader.
type ReaderConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// KafkaSource adapts a kafka-go consumer-group reader to Source. Offsets are
// committed explicitly and new groups start from the earliest offset.
type KafkaSource struct {
	reader      *kafka.Reader
	pollTimeout time.Duration
}

func NewKafkaSource(cfg ReaderConfig) *KafkaSource {
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return &KafkaSource{reader: r, pollTimeout: timeout}
}

func (s *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	m, err := s.reader.FetchMessage(pollCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return Message{}, ErrNoMessage
		}
		return Message{}, fmt.Errorf("fetch from %s: %w", s.reader.Config().Topic, err)
	}
	return Message{
		Topic:     m.Topic,
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
		Handle:    m,
	}, nil
}

func (s *KafkaSource) Commit(ctx context.Context, msg Message) error {
	km, ok := msg.Handle.(kafka.Message)
	if !ok {
		return fmt.Errorf("commit: message at offset %d has no kafka handle", msg.Offset)
	}
	return s.reader.CommitMessages(ctx, km)
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
