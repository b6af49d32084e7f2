package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/homease/service-booking/internal/application"
	"github.com/homease/service-booking/internal/config"
	bookingEvents "github.com/homease/service-booking/internal/events"
	"github.com/homease/service-booking/internal/handler"
	"github.com/homease/service-booking/internal/pkg/auth"
	"github.com/homease/service-booking/internal/pkg/database"
	"github.com/homease/service-booking/internal/pkg/health"
	"github.com/homease/service-booking/internal/pkg/kafka"
	"github.com/homease/service-booking/internal/pkg/kvstore"
	"github.com/homease/service-booking/internal/pkg/logger"
	"github.com/homease/service-booking/internal/pkg/metrics"
	"github.com/homease/service-booking/internal/pkg/middleware"
	"github.com/homease/service-booking/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking", zap.String("port", cfg.Port))

	db, err := database.Connect(cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.ProviderModel{},
			&repository.ServiceModel{},
			&repository.BookingModel{},
			&repository.CancellationModel{},
			&repository.NotificationModel{},
			&repository.ProviderAccountModel{},
			&repository.CustomerAccountModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.URL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()
	emitter := bookingEvents.NewEmitter(kafkaProducer, log)

	// Redis when configured, in-memory otherwise (single-instance deploys).
	var kv kvstore.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := kvstore.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		kv = redisStore
	} else {
		log.Warn("no redis address configured, using in-memory kvstore")
		kv = kvstore.NewMemoryStore()
	}

	txManager := repository.NewGormTxManager(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	notificationSink := repository.NewGormNotificationSink(db)
	providerLookup := repository.NewGormProviderLookup(db)
	serviceLookup := repository.NewGormServiceLookup(db)
	counters := repository.NewGormFinancialCounters(db)

	bookingService := application.NewBookingService(
		bookingRepo,
		txManager,
		notificationSink,
		providerLookup,
		serviceLookup,
		counters,
		emitter,
		log,
	)

	sweeper := application.NewSweeper(bookingService, kv, log,
		cfg.Sweeper.Interval, cfg.Sweeper.StaleThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Start(ctx)

	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	bookingHandler := handler.NewBookingHandler(bookingService, sweeper)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService, sweeper)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(metrics.Middleware())

	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
