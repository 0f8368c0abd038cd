package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	amqp "github.com/rabbitmq/amqp091-go"
)

// jobMessage is a decoded delivery waiting for a pool goroutine
type jobMessage struct {
	Job      itinerary.Job
	Delivery amqp.Delivery
}

// decodeJobMessage parses a queue body published by QueueLauncher
func decodeJobMessage(body []byte) (itinerary.Job, error) {
	var job itinerary.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return itinerary.Job{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		return itinerary.Job{}, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	return job, nil
}

// setupConsumer sets QoS and returns the delivery channel
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// Unacked messages per consumer; bounds how much work one worker hoards
	if err := w.consumer.SetPrefetch(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.consumer.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher decodes deliveries and hands them to the pool. It
// returns when ctx is canceled or the delivery channel closes.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			job, err := decodeJobMessage(delivery.Body)
			if err != nil {
				w.logger.Error("Failed to decode job message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages go to the dead letter queue
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- &jobMessage{Job: job, Delivery: delivery}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", job.ID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
