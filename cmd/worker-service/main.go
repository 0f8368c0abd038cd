package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/bootstrap"
	"github.com/cuongbtq/itinerary-be/internal/config"
	"github.com/cuongbtq/itinerary-be/internal/lease"
	"github.com/cuongbtq/itinerary-be/internal/worker"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// leaseMargin covers the store writes that follow the last attempt
const leaseMargin = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", workerID),
	)

	resources := bootstrap.NewResources(appLogger.Logger)
	defer resources.Close()

	store, err := bootstrap.OpenStore(context.Background(), cfg, appLogger.Logger, resources)
	if err != nil {
		return err
	}

	orchestrator, err := bootstrap.NewOrchestrator(cfg, store, appLogger.Logger)
	if err != nil {
		return err
	}

	redisClient, err := bootstrap.OpenRedis(&cfg.Redis, appLogger.Logger, resources)
	if err != nil {
		return err
	}

	rabbitClient, err := bootstrap.OpenRabbitMQ(&cfg.RabbitMQ, appLogger.Logger, resources)
	if err != nil {
		return err
	}

	appLogger.Info("RabbitMQ connection established")

	leaseTTL := cfg.Worker.LeaseTTL
	if leaseTTL == 0 {
		leaseTTL = orchestrator.MaxDuration() + leaseMargin
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Store:         store,
		Consumer:      rabbitClient,
		Runner:        orchestrator,
		Leaser:        lease.NewRedis(redisClient.GetClient(), cfg.Redis.LeasePrefix),
		WorkerID:      workerID,
		QueueName:     cfg.RabbitMQ.Queue.Name,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		LeaseTTL:      leaseTTL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-done:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
			return err
		}
		appLogger.Warn("Worker stopped consuming, shutting down")
		return nil
	}

	// In-flight jobs are abandoned and their messages requeued
	cancel()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
