package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/cuongbtq/itinerary-be/internal/lease"
)

const leaseReleaseTimeout = 5 * time.Second

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-w.stopChan:
			logger.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case msg := <-w.jobsChan:
			logger.Info("Worker received job",
				slog.String("job_id", msg.Job.ID),
				slog.Uint64("delivery_tag", msg.Delivery.DeliveryTag),
			)

			err := w.safeProcessJob(ctx, msg.Job)
			w.settle(logger, msg, err)
		}
	}
}

// settle acks or nacks the delivery of a processed job
func (w *Worker) settle(logger *slog.Logger, msg *jobMessage, err error) {
	logger = logger.With(slog.String("job_id", msg.Job.ID))

	if err == nil || errors.Is(err, ErrJobOwned) {
		if err != nil {
			logger.Info("Job owned by another worker, dropping duplicate delivery")
		}
		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
		}
		return
	}

	requeue := shouldRequeueJob(err)
	logger.Error("Job processing failed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)

	if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
		logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
	}
}

// safeProcessJob keeps a panicking job from killing its pool goroutine
func (w *Worker) safeProcessJob(ctx context.Context, job itinerary.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job processing panicked",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return w.processJob(ctx, job)
}

// processJob runs one queued job under its lease. The stored record is
// authoritative; the message only names the job. The record is read again
// once the lease is held, since a run that finished the job may have
// released the lease after the first read.
func (w *Worker) processJob(ctx context.Context, queued itinerary.Job) error {
	rec, err := w.loadJob(ctx, queued.ID)
	if err != nil {
		return err
	}
	if w.skipTerminal(rec) {
		return nil
	}

	release, err := w.leaser.Acquire(ctx, rec.ID, w.leaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			return fmt.Errorf("%w: %s", ErrJobOwned, rec.ID)
		}
		return NewRetryableError(fmt.Errorf("failed to acquire lease: %w", err))
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			w.logger.Warn("Failed to release job lease",
				slog.String("job_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	rec, err = w.loadJob(ctx, rec.ID)
	if err != nil {
		return err
	}
	if w.skipTerminal(rec) {
		return nil
	}

	if err := w.runner.Run(ctx, rec.Job()); err != nil {
		if ctx.Err() != nil {
			// Abandoned by shutdown; the record is still processing
			return NewRetryableError(err)
		}
		return err
	}
	return nil
}

func (w *Worker) loadJob(ctx context.Context, id string) (*itinerary.Record, error) {
	rec, err := w.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, itinerary.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJob, id)
		}
		return nil, NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}
	return rec, nil
}

func (w *Worker) skipTerminal(rec *itinerary.Record) bool {
	if !rec.Status.IsTerminal() {
		return false
	}
	w.logger.Info("Skipping job already in terminal state",
		slog.String("job_id", rec.ID),
		slog.String("status", string(rec.Status)),
	)
	return true
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	if errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnknownJob) {
		return false
	}

	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
