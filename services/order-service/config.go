package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/checkout-saga/pkg/broker"
	common "github.com/yashrajoria/checkout-saga/services/common/config"
	"github.com/yashrajoria/checkout-saga/services/order-service/services"
)

type Config struct {
	Env  string
	Port string

	Postgres common.PostgresConfig
	RedisURL string

	KafkaBrokers       []string
	OrderCreatedTopic  string
	KafkaWriteAttempts int
	Currency           string

	EventsMode         services.EventMode
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	AWSUseSecrets       bool
	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Env:                 common.GetEnv("APP_ENV", "development"),
		Port:                common.GetEnv("PORT", "8083"),
		Postgres:            common.LoadPostgres(),
		RedisURL:            common.GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:        broker.ParseBrokers(common.GetEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderCreatedTopic:   common.GetEnv("ORDER_CREATED_TOPIC", "order-created"),
		Currency:            common.GetEnv("ORDER_CURRENCY", "usd"),
		EventsMode:          services.EventMode(common.GetEnv("ORDER_EVENTS_MODE", string(services.EventsDirect))),
		CloudWatchLogGroup:  common.GetEnv("CLOUDWATCH_LOG_GROUP", ""),
		CloudWatchNamespace: common.GetEnv("CLOUDWATCH_NAMESPACE", ""),
	}

	var err error
	var errs []error
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}
	cfg.KafkaWriteAttempts, err = common.GetInt("KAFKA_WRITE_ATTEMPTS", 5)
	collect(err)
	cfg.OutboxPollInterval, err = common.GetDuration("OUTBOX_POLL_INTERVAL", time.Second)
	collect(err)
	cfg.OutboxBatchSize, err = common.GetInt("OUTBOX_BATCH_SIZE", 50)
	collect(err)
	cfg.AWSUseSecrets, err = common.GetBool("AWS_USE_SECRETS", false)
	collect(err)
	cfg.CloudWatchEnabled, err = common.GetBool("CLOUDWATCH_ENABLED", false)
	collect(err)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ApplySecrets overrides database credentials from order/DB_CREDENTIALS.
func (c *Config) ApplySecrets(ctx context.Context, secrets common.SecretReader) error {
	return c.Postgres.ApplyDBSecret(ctx, secrets, "order/DB_CREDENTIALS")
}

func (c *Config) Validate() error {
	if err := c.Postgres.Validate(); err != nil {
		return err
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is empty")
	}
	switch c.EventsMode {
	case services.EventsDirect, services.EventsOutbox:
	default:
		return fmt.Errorf("unknown ORDER_EVENTS_MODE %q", c.EventsMode)
	}
	return nil
}
