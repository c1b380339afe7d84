package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	"github.com/yashrajoria/checkout-saga/pkg/broker"
	"github.com/yashrajoria/checkout-saga/services/common/database"
	applogger "github.com/yashrajoria/checkout-saga/services/common/logger"
	"github.com/yashrajoria/checkout-saga/services/common/middleware"
	"github.com/yashrajoria/checkout-saga/services/payment-service/config"
	"github.com/yashrajoria/checkout-saga/services/payment-service/controllers"
	paymentkafka "github.com/yashrajoria/checkout-saga/services/payment-service/kafka"
	"github.com/yashrajoria/checkout-saga/services/payment-service/models"
	"github.com/yashrajoria/checkout-saga/services/payment-service/providers"
	"github.com/yashrajoria/checkout-saga/services/payment-service/repository"
	"github.com/yashrajoria/checkout-saga/services/payment-service/routes"
	"github.com/yashrajoria/checkout-saga/services/payment-service/services"
)

const serviceName = "payment-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[PaymentService] config load failed: %v", err)
	}

	// --- AWS setup ---
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("[PaymentService] failed to load AWS config: %v", err)
	}

	var sink io.Writer
	if cfg.CloudWatchEnabled && cfg.CloudWatchLogGroup != "" {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("[PaymentService] CloudWatch Logs disabled: %v", err)
		} else {
			sink = cw
		}
	}
	logger, err := applogger.New(cfg.Env, serviceName, sink)
	if err != nil {
		log.Fatalf("[PaymentService] failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.AWSUseSecrets {
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			logger.Fatal("Failed to load secrets", zap.Error(err))
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	metrics := awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	// --- Database ---
	db, err := database.Connect(cfg.Postgres.DSN(), logger, &models.Payment{})
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("Database close error", zap.Error(err))
		}
	}()

	// --- Gateway ---
	gateway := providers.NewStripeProvider(providers.StripeConfig{
		SecretKey:       cfg.StripeSecretKey,
		SuccessURL:      cfg.StripeSuccessURL,
		CancelURL:       cfg.StripeCancelURL,
		DefaultCurrency: cfg.Currency,
	})
	verifier := providers.NewStripeWebhookVerifier(cfg.StripeWebhookSecret)

	// --- Settlement events ---
	writer := broker.NewWriter(broker.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Keyed:       true,
		MaxAttempts: cfg.KafkaWriteAttempts,
	})
	producer := paymentkafka.NewSettlementProducer(writer, paymentkafka.Topics{
		Succeeded: cfg.PaymentSucceededTopic,
		Failed:    cfg.PaymentFailedTopic,
	}, logger)
	if cfg.SettlementSNSTopicARN != "" {
		producer.WithSNSMirror(awspkg.NewSNSClient(awsCfg), cfg.SettlementSNSTopicARN)
	}
	defer producer.Close()

	repo := repository.NewGormPaymentRepo(db)
	paymentSvc := services.NewPaymentService(repo, gateway, producer, metrics, logger, services.Options{
		DefaultCurrency: cfg.Currency,
		DedupeByOrder:   cfg.DedupeByOrder,
	})

	// --- Order-created consumer ---
	var source broker.Source
	switch cfg.BrokerDriver {
	case config.BrokerSQS:
		queueURL := cfg.OrderCreatedQueueURL
		if queueURL == "" {
			if queueURL, err = awspkg.GetQueueURL(ctx, awsCfg, cfg.OrderCreatedQueueName); err != nil {
				logger.Fatal("Failed to resolve order-created queue", zap.Error(err))
			}
		}
		source = awspkg.NewSQSSource(awsCfg, queueURL, cfg.PollTimeout)
	default:
		source = broker.NewKafkaSource(broker.ReaderConfig{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.OrderCreatedTopic,
			GroupID:     cfg.ConsumerGroup,
			PollTimeout: cfg.PollTimeout,
		})
	}
	consumerCfg := services.DefaultConsumerConfig()
	consumerCfg.IdleSleep = cfg.IdleSleep
	consumer := services.NewOrderCreatedConsumer(source, paymentSvc, metrics, logger, consumerCfg)

	var dlq *kafka.Writer
	if cfg.OrderCreatedDLQTopic != "" {
		dlq = broker.NewWriter(broker.WriterConfig{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.OrderCreatedDLQTopic,
			Keyed:       true,
			MaxAttempts: cfg.KafkaWriteAttempts,
		})
		consumer.WithDeadLetter(dlq)
		defer dlq.Close()
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(ctx)
	}()

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics(metrics, serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	webhookLimiter := middleware.NewRateLimiter(rate.Limit(50), 100, 10*time.Minute)
	go webhookLimiter.Run(ctx)

	routes.RegisterPaymentRoutes(
		r,
		controllers.NewPaymentController(paymentSvc),
		controllers.NewWebhookController(verifier, paymentSvc, controllers.OrderIDSource(cfg.WebhookOrderIDSource), metrics, logger),
		webhookLimiter,
	)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Payment Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	// --- Graceful shutdown ---
	logger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Consumer did not stop before shutdown deadline")
	}
	logger.Info("Payment Service stopped gracefully")
}
