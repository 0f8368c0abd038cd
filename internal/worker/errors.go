package worker

import "errors"

var (
	// ErrShuttingDown is returned by launchers that no longer accept jobs
	ErrShuttingDown = errors.New("launcher is shutting down")

	// ErrMalformedMessage is returned when a queue message cannot be decoded
	ErrMalformedMessage = errors.New("malformed job message")

	// ErrUnknownJob is returned when a queued job has no record in the store
	ErrUnknownJob = errors.New("queued job has no record")

	// ErrJobOwned is returned when another worker holds the lease of a job
	ErrJobOwned = errors.New("job owned by another worker")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
