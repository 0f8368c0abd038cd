package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/cuongbtq/itinerary-be/internal/lease"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer is the queue side of worker-service
type Consumer interface {
	SetPrefetch(count int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Leaser grants exclusive ownership of a job id
type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lease.ReleaseFunc, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         itinerary.Store
	Consumer      Consumer
	Runner        Runner
	Leaser        Leaser
	WorkerID      string
	QueueName     string
	Concurrency   int
	PrefetchCount int
	LeaseTTL      time.Duration
}

// Worker consumes queued jobs and runs their orchestration
type Worker struct {
	logger        *slog.Logger
	store         itinerary.Store
	consumer      Consumer
	runner        Runner
	leaser        Leaser
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	leaseTTL      time.Duration

	jobsChan chan *jobMessage
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}

	return &Worker{
		logger:        cfg.Logger,
		store:         cfg.Store,
		consumer:      cfg.Consumer,
		runner:        cfg.Runner,
		leaser:        cfg.Leaser,
		workerID:      cfg.WorkerID,
		queueName:     cfg.QueueName,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		leaseTTL:      leaseTTL,
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start consumes jobs until ctx is canceled. In-flight jobs see the same
// ctx and are abandoned with it; their messages go back to the queue.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("lease_ttl", w.leaseTTL),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher stopped, waiting for worker pool")
	w.Stop()
	return nil
}

// Stop signals the pool and waits for running jobs to return
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
