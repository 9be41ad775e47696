package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/trainbooking/config"
	"github.com/Domenick1991/trainbooking/internal/email"
	"github.com/Domenick1991/trainbooking/internal/kafka"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/repository"
	"github.com/Domenick1991/trainbooking/internal/service/trains"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	workerLog, err := logger.New(logger.Options{Dir: cfg.Logging.Dir, Service: cfg.Logging.Service + "-worker", Color: cfg.Logging.Color})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer workerLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		workerLog.Error("DATABASE", fmt.Sprintf("connect postgres: %v", err))
		os.Exit(1)
	}
	defer pool.Close()

	repos := repository.NewRepositories(pool)
	tx := repository.NewTransactor(pool, cfg.Booking.IsolationLevel, cfg.Booking.LockTimeout())
	trainService := trains.NewTrainService(tx, repos, nil, workerLog,
		trains.WithWindowDays(cfg.Catalog.WindowDays),
		trains.WithOperationTimeout(cfg.Booking.OperationTimeout()),
	)

	if cfg.Kafka.NotificationsTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		sender := email.NewSender(workerLog)
		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, err := kafka.DecodeBookingEvent(msg)
				if err != nil {
					workerLog.Warn("KAFKA", err.Error())
					return nil
				}
				return sender.Send(ctx, event)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				workerLog.Error("KAFKA", fmt.Sprintf("consumer stopped: %v", err))
			}
		}()
	} else {
		workerLog.Warn("KAFKA", "notifications topic not configured, email sender disabled")
	}

	extend := func() {
		added, err := trainService.ExtendAvailabilityWindow(ctx)
		if err != nil {
			workerLog.Error("WORKER", fmt.Sprintf("extend availability window: %v", err))
			return
		}
		workerLog.Info("WORKER", fmt.Sprintf("availability window checked, %d days added", added))
	}
	extend()

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.WindowSweepMinutes) * time.Minute)
	defer sweepTicker.Stop()

	for {
		select {
		case <-sweepTicker.C:
			extend()
		case <-ctx.Done():
			workerLog.Info("WORKER", "shutting down")
			return
		}
	}
}
