package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/itinerary-be/internal/api/handler"
	"github.com/cuongbtq/itinerary-be/internal/api/router"
	"github.com/cuongbtq/itinerary-be/internal/bootstrap"
	"github.com/cuongbtq/itinerary-be/internal/config"
	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/cuongbtq/itinerary-be/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const serviceName = "itinerary-api"

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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Backend),
		slog.String("dispatch", cfg.Job.Dispatch),
	)

	resources := bootstrap.NewResources(appLogger.Logger)
	defer resources.Close()

	store, err := bootstrap.OpenStore(context.Background(), cfg, appLogger.Logger, resources)
	if err != nil {
		return err
	}

	launcher, drain, err := initLauncher(cfg, store, appLogger.Logger, resources)
	if err != nil {
		return err
	}

	dispatcher := worker.NewDispatcher(store, launcher, appLogger.Logger)

	r := initRouter(cfg, appLogger.Logger, dispatcher, store, resources)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running", slog.String("address", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// Jobs still running past the deadline are abandoned as processing
	if drain != nil {
		if err := drain(ctx); err != nil {
			appLogger.Warn("Background jobs abandoned", slog.Any("error", err))
		}
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLauncher picks where accepted jobs run: in this process, or on the
// worker service through RabbitMQ. drain is nil when nothing runs locally.
func initLauncher(cfg *config.Config, store itinerary.Store, logger *slog.Logger, res *bootstrap.Resources) (worker.Launcher, func(context.Context) error, error) {
	if cfg.Job.Dispatch == config.DispatchQueue {
		rabbitClient, err := bootstrap.OpenRabbitMQ(&cfg.RabbitMQ, logger, res)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("RabbitMQ connection established")
		return worker.NewQueueLauncher(rabbitClient, logger), nil, nil
	}

	orchestrator, err := bootstrap.NewOrchestrator(cfg, store, logger)
	if err != nil {
		return nil, nil, err
	}

	background := worker.NewBackground(&worker.BackgroundConfig{
		Runner:        orchestrator,
		Logger:        logger,
		MaxConcurrent: cfg.Job.MaxConcurrent,
	})
	return background, background.Shutdown, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, submitter handler.Submitter, records handler.RecordReader, res *bootstrap.Resources) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	checks := make(map[string]handler.HealthChecker)
	for name, c := range res.Checks() {
		checks[name] = c
	}

	deps := &handler.Dependencies{
		Logger:       logger,
		ServiceName:  serviceName,
		Submitter:    submitter,
		Records:      records,
		HealthChecks: checks,
	}

	return router.SetupRouter(deps, router.Options{AllowedOrigins: cfg.Server.AllowedOrigins})
}
