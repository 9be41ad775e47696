package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/trainbooking/api"
	"github.com/Domenick1991/trainbooking/config"
	"github.com/Domenick1991/trainbooking/internal/bootstrap"
	"github.com/Domenick1991/trainbooking/internal/cache"
	"github.com/Domenick1991/trainbooking/internal/database/migrations"
	"github.com/Domenick1991/trainbooking/internal/kafka"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/repository"
	"github.com/Domenick1991/trainbooking/internal/service/booking"
	"github.com/Domenick1991/trainbooking/internal/service/trains"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog, err := logger.New(logger.Options{Dir: cfg.Logging.Dir, Service: cfg.Logging.Service, Color: cfg.Logging.Color})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer appLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(cfg.Database.MigrationURL())
		version, err := runner.Up()
		if err != nil {
			appLog.Error("DATABASE", fmt.Sprintf("migrate: %v", err))
			os.Exit(1)
		}
		_ = runner.Close()
		appLog.LogDatabase("MIGRATE", "schema", fmt.Sprintf("at version %d", version))
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		appLog.Error("DATABASE", fmt.Sprintf("connect postgres: %v", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.TrainCacheTTL())
	defer redisCache.Close()
	producer := kafka.NewProducer(cfg.Kafka.Brokers, appLog)
	defer producer.Close()

	repos := repository.NewRepositories(pool)
	tx := repository.NewTransactor(pool, cfg.Booking.IsolationLevel, cfg.Booking.LockTimeout())

	trainService := trains.NewTrainService(tx, repos, redisCache, appLog,
		trains.WithWindowDays(cfg.Catalog.WindowDays),
		trains.WithOperationTimeout(cfg.Booking.OperationTimeout()),
	)
	bookingService := booking.NewBookingService(tx, repos.Bookings, trainService, appLog,
		booking.WithEvents(producer, cfg.Kafka.BookingTopic),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithIdempotency(redisCache, cfg.Booking.IdempotencyTTL()),
		booking.WithOperationTimeout(cfg.Booking.OperationTimeout()),
		booking.WithMaxAttempts(cfg.Booking.MaxAttempts),
	)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Bookings:    bookingService,
		Trains:      trainService,
		Log:         appLog,
		JWTSecret:   cfg.Auth.JWTSecret,
		AdminAPIKey: cfg.Auth.AdminAPIKey,
		Checks: map[string]api.HealthCheck{
			"postgres": pool.Ping,
			"redis":    redisCache.Ping,
			"kafka":    producer.CheckConnection,
		},
	})

	appLog.Info("APP", fmt.Sprintf("isolation %s, lock timeout %s, operation timeout %s",
		cfg.Booking.IsolationLevel, cfg.Booking.LockTimeout(), cfg.Booking.OperationTimeout()))

	if err := bootstrap.Run(ctx, cfg, router, appLog); err != nil {
		appLog.Error("APP", fmt.Sprintf("server error: %v", err))
		os.Exit(1)
	}
}
