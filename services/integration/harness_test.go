package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stripe/stripe-go/v80"
	"gorm.io/gorm"

	"github.com/yashrajoria/checkout-saga/pkg/broker"
	"github.com/yashrajoria/checkout-saga/services/order-service/models"
	repositories "github.com/yashrajoria/checkout-saga/services/order-service/repository"
	paymentmodels "github.com/yashrajoria/checkout-saga/services/payment-service/models"
)

// bus is an in-memory broker: one append-only log per topic and one
// committed cursor per topic.
type bus struct {
	mu        sync.Mutex
	logs      map[string][]kafka.Message
	committed map[string]int
}

func newBus() *bus {
	return &bus{logs: map[string][]kafka.Message{}, committed: map[string]int{}}
}

func (b *bus) messages(topic string) []kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]kafka.Message(nil), b.logs[topic]...)
}

func (b *bus) committedCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[topic]
}

type busWriter struct{ b *bus }

func (w busWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	for _, m := range msgs {
		m.Offset = int64(len(w.b.logs[m.Topic]))
		w.b.logs[m.Topic] = append(w.b.logs[m.Topic], m)
	}
	return nil
}

func (w busWriter) Close() error { return nil }

type busSource struct {
	b     *bus
	topic string
}

func (s busSource) Fetch(_ context.Context) (broker.Message, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	next := s.b.committed[s.topic]
	if next >= len(s.b.logs[s.topic]) {
		return broker.Message{}, broker.ErrNoMessage
	}
	m := s.b.logs[s.topic][next]
	return broker.Message{Topic: s.topic, Key: m.Key, Value: m.Value, Offset: m.Offset, Handle: m}, nil
}

func (s busSource) Commit(_ context.Context, msg broker.Message) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.committed[s.topic] = int(msg.Offset) + 1
	return nil
}

func (s busSource) Close() error { return nil }

// redisStub serves cart JSON the way cart-service stores it.
type redisStub struct {
	mu   sync.Mutex
	data map[string]string
}

func (r *redisStub) Get(_ context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *redisStub) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := r.Get(ctx, key)
	r.mu.Lock()
	delete(r.data, key)
	r.mu.Unlock()
	return cmd
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]models.Order
	outbox *memOutbox
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[uuid.UUID]models.Order{}, outbox: &memOutbox{}}
}

func (m *memOrderRepo) WithTx(_ context.Context, fn func(tx repositories.OrderRepository) error) error {
	staged := &memOrderRepo{orders: map[uuid.UUID]models.Order{}, outbox: &memOutbox{}}
	if err := fn(staged); err != nil {
		return err
	}
	m.mu.Lock()
	for id, o := range staged.orders {
		m.orders[id] = o
	}
	m.mu.Unlock()
	m.outbox.mu.Lock()
	m.outbox.msgs = append(m.outbox.msgs, staged.outbox.msgs...)
	m.outbox.mu.Unlock()
	return nil
}

func (m *memOrderRepo) list(userID string) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if userID == "" || o.UserID == userID {
			out = append(out, o)
		}
	}
	return out
}

func (m *memOrderRepo) FindByUserID(_ context.Context, userID string, _, _ int) ([]models.Order, int64, error) {
	out := m.list(userID)
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	out := m.list("")
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) FindByIDAndUserID(_ context.Context, orderID uuid.UUID, userID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (m *memOrderRepo) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[order.ID]
	o.Status, o.CompletedAt = order.Status, order.CompletedAt
	m.orders[order.ID] = o
	return nil
}

func (m *memOrderRepo) Outbox() repositories.OutboxRepository { return m.outbox }

type memOutbox struct {
	mu   sync.Mutex
	msgs []models.OutboxMessage
}

func (o *memOutbox) Add(_ context.Context, msg *models.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	msg.ID = uuid.New()
	o.msgs = append(o.msgs, *msg)
	return nil
}

func (o *memOutbox) Pending(_ context.Context, limit int) ([]models.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.OutboxMessage
	for _, m := range o.msgs {
		if m.SentAt == nil && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (o *memOutbox) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.msgs {
		if o.msgs[i].ID == id {
			o.msgs[i].SentAt = &sentAt
		}
	}
	return nil
}

func (o *memOutbox) MarkFailed(_ context.Context, id uuid.UUID, cause string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.msgs {
		if o.msgs[i].ID == id {
			o.msgs[i].Attempts++
			o.msgs[i].LastError = cause
		}
	}
	return nil
}

// memPaymentRepo mirrors the conditional updates of the gorm repository.
type memPaymentRepo struct {
	mu       sync.Mutex
	payments []paymentmodels.Payment
}

func (m *memPaymentRepo) Create(_ context.Context, p *paymentmodels.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now().Add(time.Duration(len(m.payments)) * time.Millisecond)
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memPaymentRepo) AttachSession(_ context.Context, id uuid.UUID, sessionID, checkoutURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.payments {
		p := &m.payments[i]
		if p.ID != id {
			continue
		}
		p.SessionID, p.CheckoutURL = &sessionID, &checkoutURL
		if p.Status == paymentmodels.PaymentStatusPending {
			p.Status = paymentmodels.PaymentStatusProcessing
		}
	}
	return nil
}

func (m *memPaymentRepo) Transition(_ context.Context, id uuid.UUID, from []paymentmodels.PaymentStatus, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.payments {
		p := &m.payments[i]
		if p.ID != id {
			continue
		}
		allowed := false
		for _, s := range from {
			allowed = allowed || s == p.Status
		}
		if !allowed {
			return false, nil
		}
		if v, ok := updates["status"].(paymentmodels.PaymentStatus); ok {
			p.Status = v
		}
		if v, ok := updates["paid_at"].(time.Time); ok {
			p.PaidAt = &v
		}
		if v, ok := updates["failed_at"].(time.Time); ok {
			p.FailedAt = &v
		}
		return true, nil
	}
	return false, nil
}

func (m *memPaymentRepo) FindLatestByOrderID(_ context.Context, orderID string) (*paymentmodels.Payment, error) {
	rows := m.byOrder(orderID)
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[len(rows)-1], nil
}

func (m *memPaymentRepo) FindBySessionID(_ context.Context, sessionID string) (*paymentmodels.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.SessionID != nil && *p.SessionID == sessionID {
			cp := p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memPaymentRepo) byOrder(orderID string) []paymentmodels.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []paymentmodels.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows
}

func stripeStub(t *testing.T, handler http.HandlerFunc) stripe.Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}
