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
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
	"github.com/yashrajoria/checkout-saga/pkg/broker"
	"github.com/yashrajoria/checkout-saga/services/common/database"
	applogger "github.com/yashrajoria/checkout-saga/services/common/logger"
	"github.com/yashrajoria/checkout-saga/services/common/middleware"
	"github.com/yashrajoria/checkout-saga/services/order-service/cart"
	"github.com/yashrajoria/checkout-saga/services/order-service/controllers"
	orderkafka "github.com/yashrajoria/checkout-saga/services/order-service/kafka"
	"github.com/yashrajoria/checkout-saga/services/order-service/models"
	repositories "github.com/yashrajoria/checkout-saga/services/order-service/repository"
	"github.com/yashrajoria/checkout-saga/services/order-service/routes"
	"github.com/yashrajoria/checkout-saga/services/order-service/services"
)

const serviceName = "order-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("[OrderService] config load failed: %v", err)
	}

	// --- AWS setup ---
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("[OrderService] failed to load AWS config: %v", err)
	}

	var sink io.Writer
	if cfg.CloudWatchEnabled && cfg.CloudWatchLogGroup != "" {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("[OrderService] CloudWatch Logs disabled: %v", err)
		} else {
			sink = cw
		}
	}
	logger, err := applogger.New(cfg.Env, serviceName, sink)
	if err != nil {
		log.Fatalf("[OrderService] failed to initialize logger: %v", err)
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
	db, err := database.Connect(cfg.Postgres.DSN(), logger, &models.Order{}, &models.OrderItem{}, &models.OutboxMessage{})
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("Database close error", zap.Error(err))
		}
	}()

	// --- Cart (Redis) ---
	redisClient, err := cart.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// --- Kafka ---
	writer := broker.NewWriter(broker.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		MaxAttempts: cfg.KafkaWriteAttempts,
	})
	producer := orderkafka.NewOrderEventProducer(writer, cfg.OrderCreatedTopic, logger)
	defer producer.Close()

	// --- Dependency injection ---
	orderRepo := repositories.NewGormOrderRepository(db)
	orderService := services.NewOrderService(orderRepo, cart.NewRedisCartClient(redisClient), producer, metrics, logger, services.Options{
		Mode:     cfg.EventsMode,
		Currency: cfg.Currency,
	})

	relayDone := make(chan struct{})
	if cfg.EventsMode == services.EventsOutbox {
		relay := services.NewOutboxRelay(orderRepo.Outbox(), producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, metrics, logger)
		go func() {
			defer close(relayDone)
			relay.Run(ctx)
		}()
	} else {
		close(relayDone)
	}

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

	routes.RegisterOrderRoutes(r, controllers.NewOrderController(orderService))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Order Service started", zap.String("port", cfg.Port), zap.String("events_mode", string(cfg.EventsMode)))
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
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn("Outbox relay did not stop before shutdown deadline")
	}
	logger.Info("Order Service stopped gracefully")
}
