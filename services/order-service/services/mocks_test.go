package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/checkout-saga/services/order-service/cart"
	"github.com/yashrajoria/checkout-saga/services/order-service/models"
	repositories "github.com/yashrajoria/checkout-saga/services/order-service/repository"
)

var errBoom = errors.New("boom")

// mockOrderRepo keeps orders in memory. WithTx stages writes and only keeps
// them when fn returns nil and commitErr is unset.
type mockOrderRepo struct {
	orders    map[uuid.UUID]*models.Order
	outbox    *mockOutbox
	commitErr error
	createErr error
	updateErr error
	findErr   error
	updates   int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[uuid.UUID]*models.Order{}, outbox: &mockOutbox{}}
}

func (m *mockOrderRepo) WithTx(ctx context.Context, fn func(tx repositories.OrderRepository) error) error {
	staged := &mockOrderRepo{
		orders:    map[uuid.UUID]*models.Order{},
		outbox:    &mockOutbox{addErr: m.outbox.addErr},
		createErr: m.createErr,
	}
	if err := fn(staged); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	for id, o := range staged.orders {
		m.orders[id] = o
	}
	m.outbox.msgs = append(m.outbox.msgs, staged.outbox.msgs...)
	return nil
}

func (m *mockOrderRepo) FindByUserID(_ context.Context, userID string, page, limit int) ([]models.Order, int64, error) {
	if m.findErr != nil {
		return nil, 0, m.findErr
	}
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) FindAll(_ context.Context, page, limit int) ([]models.Order, int64, error) {
	if m.findErr != nil {
		return nil, 0, m.findErr
	}
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) FindByIDAndUserID(_ context.Context, orderID uuid.UUID, userID string) (*models.Order, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, order *models.Order) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates++
	stored := m.orders[order.ID]
	stored.Status = order.Status
	stored.CompletedAt = order.CompletedAt
	return nil
}

func (m *mockOrderRepo) Outbox() repositories.OutboxRepository {
	return m.outbox
}

type mockOutbox struct {
	msgs       []models.OutboxMessage
	sent       map[uuid.UUID]time.Time
	failed     map[uuid.UUID]string
	addErr     error
	pendingErr error
	markErr    error
}

func (m *mockOutbox) Add(_ context.Context, msg *models.OutboxMessage) error {
	if m.addErr != nil {
		return m.addErr
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *mockOutbox) Pending(_ context.Context, limit int) ([]models.OutboxMessage, error) {
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	var out []models.OutboxMessage
	for _, msg := range m.msgs {
		if _, done := m.sent[msg.ID]; done {
			continue
		}
		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockOutbox) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	if m.sent == nil {
		m.sent = map[uuid.UUID]time.Time{}
	}
	m.sent[id] = sentAt
	return nil
}

func (m *mockOutbox) MarkFailed(_ context.Context, id uuid.UUID, cause string) error {
	if m.failed == nil {
		m.failed = map[uuid.UUID]string{}
	}
	m.failed[id] = cause
	return nil
}

type mockCart struct {
	carts    map[string]*cart.Cart
	getErr   error
	clearErr error
	cleared  []string
}

func (m *mockCart) GetCart(_ context.Context, userID string) (*cart.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return &cart.Cart{UserID: userID}, nil
}

func (m *mockCart) ClearCart(_ context.Context, userID string) (int, error) {
	if m.clearErr != nil {
		return 0, m.clearErr
	}
	m.cleared = append(m.cleared, userID)
	n := 0
	if c, ok := m.carts[userID]; ok {
		n = len(c.Items)
		delete(m.carts, userID)
	}
	return n, nil
}

type mockEvents struct {
	published []models.OrderCreatedEvent
	err       error
}

func (m *mockEvents) PublishOrderCreated(_ context.Context, evt models.OrderCreatedEvent) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, evt)
	return nil
}

func (m *mockEvents) Topic() string { return "order-created" }

type mockPublisher struct {
	calls  int
	failOn int
	sent   []string
}

func (m *mockPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	m.calls++
	if m.failOn > 0 && m.calls == m.failOn {
		return errBoom
	}
	m.sent = append(m.sent, topic)
	return nil
}
