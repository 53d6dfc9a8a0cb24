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

	"energy-store/config"
	"energy-store/internal/api"
	"energy-store/internal/auth"
	"energy-store/internal/broker"
	"energy-store/internal/cart"
	"energy-store/internal/handoff"
	"energy-store/internal/redisclient"
	"energy-store/internal/service"
	"energy-store/internal/store"
	"energy-store/internal/util"
	"energy-store/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting energy store")
	cfg.Log(logger)

	tp, err := util.InitTracer("energy-store", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()

	var repo store.Repository
	readiness := map[string]func(context.Context) error{}

	switch cfg.Database.Driver {
	case "memory":
		mem := store.NewMemoryStore()
		if err := store.Seed(ctx, mem, store.DefaultProducts()); err != nil {
			logger.Fatal("Failed to seed memory store", zap.Error(err))
		}
		repo = mem
		logger.Info("Using in-memory store")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repo = db
		readiness["database"] = db.Ping
		logger.Info("Database connected")
	}

	var cache service.StockCache = service.NopStockCache{}
	var carts cart.Store = cart.NewMemoryStore()
	var locker worker.Locker
	var idempotency api.IdempotencyStore

	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Store.CatalogTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		cache = redisClient
		carts = redisclient.NewCartStore(redisClient, cfg.Store.CartTTL)
		locker = redisClient
		idempotency = redisClient
		readiness["redis"] = redisClient.Ping
		logger.Info("Redis connected")
	}

	var events service.EventPublisher = service.NopEventPublisher{}
	var emitter handoff.Emitter = handoff.LogEmitter{}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReservations)
		defer producer.Close()

		publisher := broker.NewEventPublisher(producer)
		events = publisher
		emitter = handoff.NewKafkaEmitter(publisher)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	catalogService := service.NewCatalogService(repo, cache, cfg.Store.ReferencePrice)
	reservationService := service.NewReservationService(repo, cache, events, service.ReservationOptions{
		TTL:        cfg.Reservation.TTL,
		Compensate: cfg.Reservation.Compensate,
	})
	cartService := service.NewCartService(carts, catalogService)
	checkoutService := service.NewCheckoutService(
		carts,
		reservationService,
		handoff.NewComposer(handoff.DefaultStoreName, cfg.Store.WhatsAppNumber),
		emitter,
	)

	if _, err := catalogService.ListProducts(ctx, true); err != nil {
		logger.Warn("Failed to warm catalog cache", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := worker.NewExpirySweeper(reservationService, locker, cfg.Reservation.SweepInterval)
	go func() {
		if err := sweeper.Start(workerCtx); err != nil {
			logger.Error("Expiry sweeper error", zap.Error(err))
		}
	}()

	var confirmationWorker *worker.ConfirmationWorker
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommands, cfg.Kafka.ConsumerGroup)
		confirmationWorker = worker.NewConfirmationWorker(consumer, reservationService, repo)
		go func() {
			if err := confirmationWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Confirmation worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(cfg.Admin.Emails) == 0 && cfg.Admin.RequireAllowList {
		logger.Warn("ADMIN_EMAILS is empty; admin routes will reject everyone")
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Catalog:      catalogService,
		Carts:        cartService,
		Checkout:     checkoutService,
		Reservations: reservationService,
	}, auth.NewAuthorizer(cfg.Admin.Emails, cfg.Admin.RequireAllowList), idempotency)
	for name, check := range readiness {
		handler.AddReadinessCheck(name, check)
	}
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

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if confirmationWorker != nil {
		confirmationWorker.Stop()
	}
	checkoutService.Wait()

	logger.Info("Server exited")
}
