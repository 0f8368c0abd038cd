package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"golang.org/x/sync/semaphore"
)

// Runner executes the orchestration of one job
type Runner interface {
	Run(ctx context.Context, job itinerary.Job) error
}

// BackgroundConfig holds in-process launcher configuration
type BackgroundConfig struct {
	Runner        Runner
	Logger        *slog.Logger
	MaxConcurrent int // jobs running at once; 0 means unlimited
}

// Background runs one goroutine per job on a context owned by the host
// process rather than by the submitting request. It refuses a second launch
// for a job id that is still running.
type Background struct {
	runner Runner
	logger *slog.Logger
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

// NewBackground creates an in-process launcher
func NewBackground(cfg *BackgroundConfig) *Background {
	ctx, cancel := context.WithCancel(context.Background())

	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}

	return &Background{
		runner:   cfg.Runner,
		logger:   cfg.Logger,
		sem:      sem,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
}

// Launch starts the job in its own goroutine and returns immediately. The
// caller's ctx is not propagated to the job.
func (b *Background) Launch(_ context.Context, job itinerary.Job) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrShuttingDown
	}
	if _, running := b.inflight[job.ID]; running {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", itinerary.ErrAlreadyRunning, job.ID)
	}
	b.inflight[job.ID] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(job)
	return nil
}

func (b *Background) run(job itinerary.Job) {
	defer b.wg.Done()
	defer b.release(job.ID)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Background task panicked",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if b.sem != nil {
		if err := b.sem.Acquire(b.ctx, 1); err != nil {
			b.logger.Warn("Background task abandoned before start",
				slog.String("job_id", job.ID),
			)
			return
		}
		defer b.sem.Release(1)
	}

	if err := b.runner.Run(b.ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			b.logger.Warn("Background task abandoned",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		b.logger.Error("Background task failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Background) release(id string) {
	b.mu.Lock()
	delete(b.inflight, id)
	b.mu.Unlock()
}

// Active returns the number of jobs launched and not yet finished
func (b *Background) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight)
}

// Shutdown stops accepting jobs and waits for running ones. When ctx ends
// first the remaining jobs are abandoned: their context is canceled and
// Shutdown waits for them to observe it.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	active := len(b.inflight)
	b.mu.Unlock()

	b.logger.Info("Draining background tasks", slog.Int("active", active))

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		b.logger.Info("Background tasks drained")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Background drain timed out, abandoning remaining tasks",
			slog.Int("active", b.Active()),
		)
		b.cancel()
		<-done
		return ctx.Err()
	}
}
