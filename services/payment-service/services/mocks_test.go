package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
	"github.com/yashrajoria/checkout-saga/services/payment-service/providers"
)

// --- Mock Repository ---

type mockRepo struct {
	mu       sync.Mutex
	payments []*models.Payment
	clock    time.Time

	createErr error
	findErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *mockRepo) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	p.CreatedAt = m.clock
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *mockRepo) AttachSession(_ context.Context, id uuid.UUID, sessionID, checkoutURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID(id)
	if p == nil {
		return gorm.ErrRecordNotFound
	}
	p.SessionID = &sessionID
	p.CheckoutURL = &checkoutURL
	if p.Status == models.PaymentStatusPending {
		p.Status = models.PaymentStatusProcessing
	}
	return nil
}

func (m *mockRepo) Transition(_ context.Context, id uuid.UUID, from []models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID(id)
	if p == nil {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if p.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	if v, ok := updates["status"].(models.PaymentStatus); ok {
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

func (m *mockRepo) FindLatestByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var latest *models.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockRepo) FindBySessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, p := range m.payments {
		if p.SessionID != nil && *p.SessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepo) byID(id uuid.UUID) *models.Payment {
	for _, p := range m.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *mockRepo) forOrder(orderID string) []models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out
}

// --- Mock Gateway ---

type mockGateway struct {
	mu    sync.Mutex
	calls []providers.CheckoutRequest
	err   error
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreateCheckoutSession(_ context.Context, req providers.CheckoutRequest) (*providers.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	id := "cs_test_" + req.OrderID + "_" + string(rune('a'+len(g.calls)-1))
	return &providers.CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

// --- Mock Publisher ---

type mockPublisher struct {
	mu        sync.Mutex
	succeeded []models.PaymentSucceededEvent
	failed    []models.PaymentFailedEvent
	err       error
}

func (p *mockPublisher) PublishSucceeded(_ context.Context, evt models.PaymentSucceededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.succeeded = append(p.succeeded, evt)
	return nil
}

func (p *mockPublisher) PublishFailed(_ context.Context, evt models.PaymentFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.failed = append(p.failed, evt)
	return nil
}

var errBoom = errors.New("boom")
