package main

import (
	"context"
	"errors"
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
	"storefront/internal/port"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/store/memstore"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	repo, closeRepo := openRepository(cfg, logger)
	defer closeRepo()

	var guard port.CheckoutGuard
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		guard = redisClient
		logger.Info("Redis checkout guard enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var (
		publisher port.EventPublisher
		consumer  *broker.Consumer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		consumer = broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		logger.Info("Kafka events enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	timeout := cfg.Database.Timeout
	ledger := service.NewInventoryLedger(repo, timeout)
	lifecycle := service.NewOrderLifecycle(repo, ledger, publisher, timeout)
	query := service.NewOrderQuery(repo, timeout)
	svc := api.Services{
		Carts:     service.NewCartService(repo, ledger, timeout),
		Lifecycle: lifecycle,
		Query:     query,
		Catalog:   service.NewCatalogService(repo, ledger, timeout),
		Finalizer: service.NewOrderFinalizer(repo, ledger, lifecycle, guard, publisher, service.FinalizerConfig{
			Timeout:        timeout,
			LockTTL:        cfg.Checkout.LockTTL,
			IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		}),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orderWorker := worker.NewOrderWorker(consumer, lifecycle, query)
	go func() {
		if err := orderWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Order worker error", zap.Error(err))
		}
	}()
	go orderWorker.RunSweeper(workerCtx, cfg.Checkout.SweepInterval, cfg.Checkout.SweepInterval)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(svc, repo, cfg.Checkout.Currency)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := orderWorker.Stop(); err != nil {
		logger.Warn("Error stopping order worker", zap.Error(err))
	}

	logger.Info("Server exited")
}

// openRepository connects the configured store driver
func openRepository(cfg *config.Config, logger *zap.Logger) (port.Repository, func()) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store; data is lost on exit")
		repo := memstore.New()
		if err := memstore.Seed(context.Background(), repo); err != nil {
			logger.Fatal("Failed to seed in-memory store", zap.Error(err))
		}
		return repo, func() {}

	case config.DriverPostgres:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		logger.Info("Database connected")
		return db, func() { db.Close() }

	default:
		logger.Fatal("Unknown store driver", zap.String("driver", cfg.Database.Driver))
		return nil, nil
	}
}
