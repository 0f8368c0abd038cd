package itinerary

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job record does not exist in the store
	ErrNotFound = errors.New("itinerary not found")

	// ErrJobCreationFailed is returned when the initial store write yields no id
	ErrJobCreationFailed = errors.New("job creation failed")

	// ErrDispatchFailed is returned when a created job could not be handed to background execution
	ErrDispatchFailed = errors.New("job dispatch failed")

	// ErrProvider covers every completion call failure: transport, non-success status, empty response
	ErrProvider = errors.New("completion provider error")

	// ErrParse is returned when the completion text is not a valid itinerary payload
	ErrParse = errors.New("invalid itinerary payload")

	// ErrInconsistentStatus is returned when a stored record carries an unknown status
	ErrInconsistentStatus = errors.New("inconsistent job status")

	// ErrTerminal is returned when an update targets a completed or failed record
	ErrTerminal = errors.New("job already in a terminal state")

	// ErrAlreadyRunning is returned when a job id already has an active orchestrator
	ErrAlreadyRunning = errors.New("job already running")
)

// ValidationError reports malformed submission input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExhaustedMessage is the error stored on a record whose attempts ran out
func ExhaustedMessage(maxAttempts int) string {
	return fmt.Sprintf("%d retry exceed and failed", maxAttempts)
}
