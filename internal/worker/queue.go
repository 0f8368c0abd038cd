package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
)

const publishTimeout = 10 * time.Second

// Publisher sends a message to the job queue
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// QueueLauncher hands jobs to worker-service through the message queue
type QueueLauncher struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewQueueLauncher creates a launcher backed by a queue publisher
func NewQueueLauncher(publisher Publisher, logger *slog.Logger) *QueueLauncher {
	return &QueueLauncher{publisher: publisher, logger: logger}
}

// Launch publishes the job. A client hanging up after the record was
// created does not stop the publish.
func (q *QueueLauncher) Launch(ctx context.Context, job itinerary.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := q.publisher.PublishWithRetry(publishCtx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job message: %w", err)
	}

	q.logger.Debug("Job published to queue", slog.String("job_id", job.ID))
	return nil
}
