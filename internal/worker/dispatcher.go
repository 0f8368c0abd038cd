package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
)

// dispatchFailedMessage is stored on a record that could not be handed to
// background execution
const dispatchFailedMessage = "failed to schedule itinerary generation"

// markFailedTimeout bounds the write that closes out an undispatched job
const markFailedTimeout = 5 * time.Second

// Launcher detaches the orchestration of a created job from its caller.
// Implementations must return without waiting for the orchestration, and
// the orchestration must outlive ctx.
type Launcher interface {
	Launch(ctx context.Context, job itinerary.Job) error
}

// Dispatcher is the synchronous half of a submission: it creates the job
// record and hands the job to a Launcher
type Dispatcher struct {
	store       itinerary.Store
	launcher    Launcher
	logger      *slog.Logger
	markTimeout time.Duration
	now         func() time.Time
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(store itinerary.Store, launcher Launcher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		launcher:    launcher,
		logger:      logger,
		markTimeout: markFailedTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the request, writes the initial processing record and
// launches its orchestration. It returns as soon as the record exists; the
// only store write it waits on is the creation.
func (d *Dispatcher) Submit(ctx context.Context, destination string, durationDays int) (string, error) {
	if err := itinerary.ValidateSubmission(destination, durationDays); err != nil {
		return "", err
	}

	rec := itinerary.NewRecord(strings.TrimSpace(destination), durationDays, d.now())

	id, err := d.store.Create(ctx, rec)
	if err != nil {
		d.logger.Error("Failed to create job record",
			slog.String("destination", rec.Destination),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", itinerary.ErrJobCreationFailed, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: store returned no id", itinerary.ErrJobCreationFailed)
	}
	rec.ID = id

	if err := d.launcher.Launch(ctx, rec.Job()); err != nil {
		d.logger.Error("Failed to launch job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)

		// Nothing owns the job now; close it out so pollers don't wait forever
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.markTimeout)
		defer cancel()
		if markErr := d.store.Update(markCtx, id, itinerary.Failed(-1, dispatchFailedMessage, d.now())); markErr != nil {
			d.logger.Error("Failed to mark undispatched job as failed",
				slog.String("job_id", id),
				slog.String("error", markErr.Error()),
			)
		}
		return "", fmt.Errorf("%w: %v", itinerary.ErrDispatchFailed, err)
	}

	d.logger.Info("Job submitted",
		slog.String("job_id", id),
		slog.String("destination", rec.Destination),
		slog.Int("duration_days", durationDays),
	)

	return id, nil
}
