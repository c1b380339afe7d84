package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yashrajoria/checkout-saga/pkg/broker"
	common "github.com/yashrajoria/checkout-saga/services/common/config"
)

const (
	BrokerKafka = "kafka"
	BrokerSQS   = "sqs"
)

type Config struct {
	Env  string
	Port string

	Postgres common.PostgresConfig

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string
	Currency            string

	BrokerDriver          string
	KafkaBrokers          []string
	ConsumerGroup         string
	OrderCreatedTopic     string
	OrderCreatedDLQTopic  string
	OrderCreatedQueueURL  string
	OrderCreatedQueueName string
	PaymentSucceededTopic string
	PaymentFailedTopic    string
	KafkaWriteAttempts    int
	PollTimeout           time.Duration
	IdleSleep             time.Duration

	DedupeByOrder        bool
	WebhookOrderIDSource string

	SettlementSNSTopicARN string

	AWSUseSecrets       bool
	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Env:                   common.GetEnv("APP_ENV", "development"),
		Port:                  common.GetEnv("PORT", "8087"),
		Postgres:              common.LoadPostgres(),
		StripeSecretKey:       common.GetEnv("STRIPE_API_KEY", ""),
		StripeWebhookSecret:   common.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:      common.GetEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		StripeCancelURL:       common.GetEnv("STRIPE_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		Currency:              strings.ToLower(common.GetEnv("PAYMENT_CURRENCY", "usd")),
		BrokerDriver:          strings.ToLower(common.GetEnv("BROKER_DRIVER", BrokerKafka)),
		KafkaBrokers:          broker.ParseBrokers(common.GetEnv("KAFKA_BROKERS", "localhost:9092")),
		ConsumerGroup:         common.GetEnv("KAFKA_CONSUMER_GROUP", "payment-service-group"),
		OrderCreatedTopic:     common.GetEnv("ORDER_CREATED_TOPIC", "order-created"),
		OrderCreatedDLQTopic:  common.GetEnv("ORDER_CREATED_DLQ_TOPIC", ""),
		OrderCreatedQueueURL:  common.GetEnv("ORDER_CREATED_QUEUE_URL", ""),
		OrderCreatedQueueName: common.GetEnv("ORDER_CREATED_QUEUE_NAME", ""),
		PaymentSucceededTopic: common.GetEnv("PAYMENT_SUCCEEDED_TOPIC", "payment-succeeded"),
		PaymentFailedTopic:    common.GetEnv("PAYMENT_FAILED_TOPIC", "payment-failed"),
		WebhookOrderIDSource:  common.GetEnv("WEBHOOK_ORDER_ID_SOURCE", "redirect_url"),
		SettlementSNSTopicARN: common.GetEnv("SETTLEMENT_SNS_TOPIC_ARN", ""),
		CloudWatchLogGroup:    common.GetEnv("CLOUDWATCH_LOG_GROUP", ""),
		CloudWatchNamespace:   common.GetEnv("CLOUDWATCH_NAMESPACE", ""),
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
	cfg.PollTimeout, err = common.GetDuration("CONSUMER_POLL_TIMEOUT", 5*time.Second)
	collect(err)
	cfg.IdleSleep, err = common.GetDuration("CONSUMER_IDLE_SLEEP", 100*time.Millisecond)
	collect(err)
	cfg.DedupeByOrder, err = common.GetBool("PAYMENT_DEDUPE_BY_ORDER", false)
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

// SecretReader is satisfied by *awspkg.SecretsClient.
type SecretReader interface {
	common.SecretReader
}

type stripeSecret struct {
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
}

// ApplySecrets overrides database credentials and Stripe keys from Secrets
// Manager.
func (c *Config) ApplySecrets(ctx context.Context, secrets SecretReader) error {
	if err := c.Postgres.ApplyDBSecret(ctx, secrets, "payment/DB_CREDENTIALS"); err != nil {
		return err
	}
	var s stripeSecret
	if err := secrets.GetSecretJSON(ctx, "payment/STRIPE", &s); err != nil {
		return err
	}
	if s.APIKey != "" {
		c.StripeSecretKey = s.APIKey
	}
	if s.WebhookSecret != "" {
		c.StripeWebhookSecret = s.WebhookSecret
	}
	return nil
}

// Validate runs after secrets were applied.
func (c *Config) Validate() error {
	if err := c.Postgres.Validate(); err != nil {
		return err
	}
	if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
		return fmt.Errorf("missing required STRIPE_API_KEY or STRIPE_WEBHOOK_SECRET")
	}
	switch c.BrokerDriver {
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is empty")
		}
	case BrokerSQS:
		if c.OrderCreatedQueueURL == "" && c.OrderCreatedQueueName == "" {
			return fmt.Errorf("ORDER_CREATED_QUEUE_URL or ORDER_CREATED_QUEUE_NAME is required with BROKER_DRIVER=sqs")
		}
	default:
		return fmt.Errorf("unknown BROKER_DRIVER %q", c.BrokerDriver)
	}
	switch c.WebhookOrderIDSource {
	case "redirect_url", "metadata":
	default:
		return fmt.Errorf("unknown WEBHOOK_ORDER_ID_SOURCE %q", c.WebhookOrderIDSource)
	}
	return nil
}
