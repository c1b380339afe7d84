package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/checkout-saga/services/order-service/services"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecretJSON(_ context.Context, name string, v any) error {
	return json.Unmarshal([]byte(f[name]), v)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_USER", "orders")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "orders")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, services.EventsDirect, cfg.EventsMode)
	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, "order-created", cfg.OrderCreatedTopic)
}

func TestValidate_UnknownMode(t *testing.T) {
	t.Setenv("POSTGRES_USER", "orders")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "orders")
	t.Setenv("ORDER_EVENTS_MODE", "carrier-pigeon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "ORDER_EVENTS_MODE")
}

func TestLoadConfig_BadInterval(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "OUTBOX_POLL_INTERVAL")
}

func TestApplySecrets(t *testing.T) {
	t.Setenv("POSTGRES_DB", "orders")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.NoError(t, cfg.ApplySecrets(context.Background(), fakeSecrets{
		"order/DB_CREDENTIALS": `{"username":"svc","password":"pw","host":"db.internal"}`,
	}))
	assert.Equal(t, "svc", cfg.Postgres.User)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.NoError(t, cfg.Validate())
}
