package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/completion"
	"github.com/cuongbtq/itinerary-be/internal/itinerary"
)

// Completer is the completion provider driven by the orchestrator
type Completer interface {
	Complete(ctx context.Context, prompt string, params completion.Params) (*completion.Response, error)
}

// OrchestratorConfig holds orchestrator dependencies and settings
type OrchestratorConfig struct {
	Store          itinerary.Store
	Completer      Completer
	Logger         *slog.Logger
	Policy         RetryPolicy
	Params         completion.Params
	PromptTemplate string
	AttemptTimeout time.Duration // bound on a single provider call
	WriteTimeout   time.Duration // bound on a single store write
}

// Orchestrator owns the lifecycle of a job record once it has been created:
// it drives the completion provider through the retry policy and writes
// every transition back to the store. It is the only writer of a job id.
type Orchestrator struct {
	store          itinerary.Store
	completer      Completer
	logger         *slog.Logger
	policy         RetryPolicy
	params         completion.Params
	promptTemplate string
	attemptTimeout time.Duration
	writeTimeout   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 60 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	return &Orchestrator{
		store:          cfg.Store,
		completer:      cfg.Completer,
		logger:         cfg.Logger,
		policy:         cfg.Policy.withDefaults(),
		params:         cfg.Params,
		promptTemplate: cfg.PromptTemplate,
		attemptTimeout: attemptTimeout,
		writeTimeout:   writeTimeout,
		now:            func() time.Time { return time.Now().UTC() },
		sleep:          sleepContext,
	}
}

// MaxDuration bounds the wall-clock time of one Run, store writes excluded
func (o *Orchestrator) MaxDuration() time.Duration {
	return time.Duration(o.policy.MaxAttempts)*o.attemptTimeout + o.policy.MaxBackoff()
}

// Run generates the itinerary for job. Every attempt produces exactly one
// store write; the write of the last failed attempt is the terminal failed
// write. A record already finished by another run is left as it is. The
// only error returned is a failed terminal write, or ctx being canceled by
// host shutdown, in which case the job is abandoned as processing.
func (o *Orchestrator) Run(ctx context.Context, job itinerary.Job) error {
	logger := o.logger.With(slog.String("job_id", job.ID))
	prompt := itinerary.BuildPrompt(o.promptTemplate, job)

	logger.Info("Processing job",
		slog.String("destination", job.Destination),
		slog.Int("duration_days", job.DurationDays),
		slog.Int("max_attempts", o.policy.MaxAttempts),
	)

	start := o.firstAttempt(job)
	if start > 0 {
		logger.Info("Resuming redelivered job", slog.Int("retry_count", job.FirstAttempt))
	}

	for i := start; i < o.policy.MaxAttempts; i++ {
		logger.Info("Generating itinerary", slog.Int("attempt", i+1))

		result, err := o.attempt(ctx, prompt)
		if err == nil {
			writeErr := o.write(ctx, job.ID, itinerary.Completed(i, result, o.now()))
			if errors.Is(writeErr, itinerary.ErrTerminal) {
				logger.Warn("Job already finished by another run")
				return nil
			}
			if writeErr != nil {
				return fmt.Errorf("failed to mark job completed: %w", writeErr)
			}
			logger.Info("Job completed successfully", slog.Int("retry_count", i))
			return nil
		}

		if ctx.Err() != nil {
			logger.Warn("Job abandoned during attempt", slog.Int("attempt", i+1))
			return fmt.Errorf("job abandoned: %w", ctx.Err())
		}

		logger.Warn("Attempt failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()),
		)

		if !o.policy.HasNext(i) {
			message := itinerary.ExhaustedMessage(o.policy.MaxAttempts)
			writeErr := o.write(ctx, job.ID, itinerary.Failed(i, message, o.now()))
			if errors.Is(writeErr, itinerary.ErrTerminal) {
				logger.Warn("Job already finished by another run")
				return nil
			}
			if writeErr != nil {
				return fmt.Errorf("failed to mark job failed: %w", writeErr)
			}
			logger.Error("Job exceeded max attempts", slog.Int("retry_count", i))
			return nil
		}

		// The loop's own attempt counter is authoritative; a lost
		// intermediate write is only logged.
		writeErr := o.write(ctx, job.ID, itinerary.AttemptFailed(i, o.now()))
		if errors.Is(writeErr, itinerary.ErrTerminal) {
			logger.Warn("Job already finished by another run")
			return nil
		}
		if writeErr != nil {
			logger.Error("Failed to record failed attempt",
				slog.Int("attempt", i+1),
				slog.String("error", writeErr.Error()),
			)
		}

		delay := o.policy.DelayBeforeAttempt(i)
		logger.Info("Waiting before retry", slog.Duration("backoff", delay))
		if err := o.sleep(ctx, delay); err != nil {
			logger.Warn("Job abandoned during backoff", slog.Int("attempt", i+1))
			return fmt.Errorf("job abandoned: %w", err)
		}
	}

	return nil
}

// firstAttempt returns the attempt index a job starts at. A redelivered job
// resumes at its stored retry count so the count never goes backwards.
func (o *Orchestrator) firstAttempt(job itinerary.Job) int {
	start := job.FirstAttempt
	if start < 0 {
		start = 0
	}
	if start > o.policy.MaxAttempts-1 {
		start = o.policy.MaxAttempts - 1
	}
	return start
}

// attempt performs one provider call and returns the serialized itinerary
func (o *Orchestrator) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	resp, err := o.completer.Complete(attemptCtx, prompt, o.params)
	if err != nil {
		if !errors.Is(err, itinerary.ErrProvider) {
			err = fmt.Errorf("%w: %v", itinerary.ErrProvider, err)
		}
		return "", err
	}

	text, err := choiceText(resp)
	if err != nil {
		return "", err
	}

	payload, err := itinerary.Parse(text)
	if err != nil {
		return "", err
	}

	return payload.String(), nil
}

// write applies a patch without letting host shutdown cut it short, so an
// abandoned job never leaves a half-written record behind
func (o *Orchestrator) write(ctx context.Context, id string, patch itinerary.Patch) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.writeTimeout)
	defer cancel()
	return o.store.Update(writeCtx, id, patch)
}

// choiceText returns the first non-empty choice text of resp
func choiceText(resp *completion.Response) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", itinerary.ErrProvider)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", itinerary.ErrProvider)
	}
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Text) != "" {
			return choice.Text, nil
		}
	}
	return "", fmt.Errorf("%w: response choices have no content", itinerary.ErrProvider)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
