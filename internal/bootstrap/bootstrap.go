// Package bootstrap wires configuration into the clients and components
// shared by the api and worker services.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/completion"
	"github.com/cuongbtq/itinerary-be/internal/config"
	"github.com/cuongbtq/itinerary-be/internal/identity"
	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/cuongbtq/itinerary-be/internal/storage/firestore"
	"github.com/cuongbtq/itinerary-be/internal/storage/memory"
	"github.com/cuongbtq/itinerary-be/internal/storage/postgres"
	"github.com/cuongbtq/itinerary-be/internal/worker"
	"github.com/cuongbtq/itinerary-be/shared/logger"
	"github.com/cuongbtq/itinerary-be/shared/postgresql"
	"github.com/cuongbtq/itinerary-be/shared/rabbitmq"
	sharedredis "github.com/cuongbtq/itinerary-be/shared/redis"
)

// HealthChecker is implemented by backing services that can be pinged
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// Resources tracks the backing clients opened for a service so they can be
// health checked and closed together
type Resources struct {
	logger  *slog.Logger
	checks  map[string]HealthChecker
	closers []namedCloser
}

// NewResources creates an empty resource set
func NewResources(logger *slog.Logger) *Resources {
	return &Resources{logger: logger, checks: make(map[string]HealthChecker)}
}

func (r *Resources) add(name string, c io.Closer, hc HealthChecker) {
	if c != nil {
		r.closers = append(r.closers, namedCloser{name: name, closer: c})
	}
	if hc != nil {
		r.checks[name] = hc
	}
}

// Checks returns the health checks of the opened clients
func (r *Resources) Checks() map[string]HealthChecker {
	return r.checks
}

// Close closes every resource in reverse order of opening
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.closer.Close(); err != nil {
			r.logger.Error("Failed to close resource",
				slog.String("resource", c.name),
				slog.Any("error", err),
			)
		}
	}
	r.closers = nil
}

// NewLogger initializes and configures the application logger
func NewLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// OpenStore builds the configured job record backend
func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger, res *Resources) (itinerary.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreFirestore:
		ts, err := identity.NewTokenSource(&identity.Config{
			SignInURL: cfg.Firestore.Auth.SignInURL,
			APIKey:    cfg.Firestore.Auth.APIKey,
			Email:     cfg.Firestore.Auth.Email,
			Password:  cfg.Firestore.Auth.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create firebase token source: %w", err)
		}

		store, err := firestore.NewStore(&firestore.Config{
			BaseURL:    cfg.Firestore.BaseURL,
			ProjectID:  cfg.Firestore.ProjectID,
			DatabaseID: cfg.Firestore.DatabaseID,
			Collection: cfg.Firestore.Collection,
			Timeout:    cfg.Firestore.Timeout,
			HTTPClient: identity.NewHTTPClient(ctx, ts),
		})
		if err != nil {
			return nil, err
		}

		log.Info("Using Firestore job store",
			slog.String("project_id", cfg.Firestore.ProjectID),
			slog.String("collection", cfg.Firestore.Collection),
		)
		return store, nil

	case config.StorePostgres:
		client, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		res.add("postgres", client, client)

		store := postgres.NewStore(client.GetDB())
		if cfg.Database.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("failed to ensure schema: %w", err)
			}
			log.Info("Database schema ensured")
		}
		return store, nil

	case config.StoreMemory:
		log.Warn("Using in-memory job store; records are lost on restart")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("invalid store backend %q", cfg.Store.Backend)
	}
}

// NewOrchestrator builds the completion client and the orchestrator on top
// of store
func NewOrchestrator(cfg *config.Config, store itinerary.Store, log *slog.Logger) (*worker.Orchestrator, error) {
	client, err := completion.NewClient(&completion.Config{
		Endpoint:          cfg.Completion.Endpoint,
		APIKey:            cfg.Completion.APIKey,
		ResponsePath:      cfg.Completion.ResponsePath,
		Timeout:           cfg.Completion.Timeout,
		RequestsPerSecond: cfg.Completion.RequestsPerSecond,
		Burst:             cfg.Completion.Burst,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	return worker.NewOrchestrator(&worker.OrchestratorConfig{
		Store:     store,
		Completer: client,
		Logger:    log,
		Policy: worker.RetryPolicy{
			MaxAttempts: cfg.Job.MaxAttempts,
			Base:        cfg.Job.BackoffBase,
			Unit:        cfg.Job.BackoffUnit,
		},
		Params: completion.Params{
			Model:       cfg.Completion.Model,
			Temperature: cfg.Completion.Temperature,
			MaxTokens:   cfg.Completion.MaxTokens,
		},
		PromptTemplate: cfg.Completion.PromptTemplate,
		AttemptTimeout: cfg.Job.AttemptTimeout,
		WriteTimeout:   cfg.Job.WriteTimeout,
	}), nil
}

// OpenRabbitMQ connects to RabbitMQ and declares the job topology
func OpenRabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger, res *Resources) (*rabbitmq.Client, error) {
	client, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		QueueName:          cfg.Queue.Name,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetter.Exchange,
		DeadLetterQueue:    cfg.DeadLetter.Queue,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	res.add("rabbitmq", client, client)
	return client, nil
}

// OpenRedis connects to the Redis instance holding job leases
func OpenRedis(cfg *config.RedisConfig, log *slog.Logger, res *Resources) (*sharedredis.Client, error) {
	client, err := sharedredis.NewClient(&sharedredis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	res.add("redis", client, client)
	return client, nil
}
