package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/gateway"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "storefront", cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	migrateCancel()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer, cfg.Kafka.TopicOrder, cfg.Kafka.TopicPaymentConfirmations)

	var gw gateway.Gateway = gateway.Disabled{}
	var webhooks api.WebhookParser
	if cfg.Gateway.StripeAPIKey != "" {
		stripeGateway, err := gateway.NewStripe(gateway.StripeConfig{
			APIKey:        cfg.Gateway.StripeAPIKey,
			WebhookSecret: cfg.Gateway.StripeWebhookSecret,
		})
		if err != nil {
			log.Fatalf("Failed to initialize payment gateway: %v", err)
		}
		gw = stripeGateway
		webhooks = stripeGateway
		logger.Info("Stripe gateway enabled")
	} else {
		logger.Warn("No payment gateway configured, gateway checkout is unavailable")
	}

	cartService := service.NewCartService(db, db, eventPublisher)
	checkoutService := service.NewCheckoutService(db, db, db, gw, redisClient, eventPublisher, service.CheckoutConfig{
		Currency:       cfg.Gateway.Currency,
		SuccessURL:     cfg.Gateway.SuccessURL,
		CancelURL:      cfg.Gateway.CancelURL,
		GatewayTimeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		Shipping: service.ShippingRates{
			Standard: cfg.Business.ShippingStandardCost,
			Express:  cfg.Business.ShippingExpressCost,
		},
	})
	fulfillmentService := service.NewFulfillmentService(db, db, eventPublisher, cfg.Business.BulkUpdateConcurrency)
	analyticsService := service.NewAnalyticsService(db, redisClient,
		time.Duration(cfg.Business.AnalyticsCacheTTLSeconds)*time.Second)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	confirmationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPaymentConfirmations, cfg.Kafka.ConsumerGroup)
	confirmationWorker := worker.NewConfirmationWorker(confirmationConsumer, db, checkoutService)
	go func() {
		if err := confirmationWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Confirmation worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Dependencies{
		Cart:          cartService,
		Checkout:      checkoutService,
		Fulfillment:   fulfillmentService,
		Analytics:     analyticsService,
		Webhooks:      webhooks,
		Confirmations: eventPublisher,
		Idempotency:   redisClient,
		JWTSecret:     cfg.Auth.JWTSecret,
		Readiness:     []func(context.Context) error{db.Ping, redisClient.Ping},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := confirmationWorker.Stop(); err != nil {
		logger.Warn("Failed to stop confirmation worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
