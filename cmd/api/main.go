package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teranga-eats/teranga-backend/api/routes"
	"github.com/teranga-eats/teranga-backend/internal/admins"
	"github.com/teranga-eats/teranga-backend/internal/checkout"
	"github.com/teranga-eats/teranga-backend/internal/fulfillment"
	"github.com/teranga-eats/teranga-backend/internal/orders"
	"github.com/teranga-eats/teranga-backend/internal/payments"
	paydunyawebhook "github.com/teranga-eats/teranga-backend/internal/webhooks/paydunya"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/db"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
	"github.com/teranga-eats/teranga-backend/pkg/metrics"
	"github.com/teranga-eats/teranga-backend/pkg/migrate"
	"github.com/teranga-eats/teranga-backend/pkg/paydunya"
	"github.com/teranga-eats/teranga-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gateway, err := paydunya.NewClient(context.Background(), cfg.PayDunya, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build paydunya client", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	ordersSvc, err := orders.NewService(ordersRepo, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(paymentsRepo, ordersRepo, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	fulfillmentSvc, err := fulfillment.NewService(ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}
	checkoutSvc, err := checkout.NewService(ordersSvc, paymentsSvc, gateway, redisClient, cfg.Checkout, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	adminsSvc, err := admins.NewService(admins.NewRepository(dbClient.DB()), cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin auth service", err)
		os.Exit(1)
	}

	webhookGuard, err := paydunyawebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.CallbackDedupe, "paydunya")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	webhookSvc, err := paydunyawebhook.NewService(paydunyawebhook.ServiceParams{
		Payments: paymentsSvc,
		Orders:   ordersRepo,
		Guard:    webhookGuard,
		Locks:    redisClient,
		LockTTL:  cfg.Checkout.OrderLockTTL,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			ordersSvc,
			paymentsSvc,
			checkoutSvc,
			fulfillmentSvc,
			adminsSvc,
			webhookSvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
