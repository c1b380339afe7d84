// Package broker defines the at-least-once delivery contract shared by the
// saga services and its kafka-go implementation.
package broker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNoMessage is returned by Source.Fetch when the poll window elapsed
// without a message. It is not a broker failure.
var ErrNoMessage = errors.New("broker: no message available")

// Message is a single delivery handed out by a Source.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	// Handle is the source specific token needed to commit the delivery
	// (a kafka.Message for Kafka, a receipt handle for SQS).
	Handle any
}

// Source is a consumer-group style message source. A delivery that is not
// committed is redelivered, either by the source itself or by the caller
// handing the same Message back to Commit later.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// Leased is implemented by sources whose deliveries are handed to another
// consumer when not committed within Lease. A delivery must not be held past
// its lease: the commit token goes stale.
type Leased interface {
	Lease() time.Duration
}

// MessageWriter is the subset of *kafka.Writer the producers rely on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// IsTimeout reports whether err is a poll deadline rather than a real failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrNoMessage) || errors.Is(err, context.DeadlineExceeded)
}

// Backoff doubles from Initial up to Max. The zero value is unusable, use
// NewBackoff.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	current time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{Initial: initial, Max: max}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
		return b.current
	}
	b.current *= 2
	if b.current > b.Max {
		b.current = b.Max
	}
	return b.current
}

func (b *Backoff) Reset() { b.current = 0 }
