package itinerary

import "time"

// Status is the lifecycle state of an itinerary job
type Status string

// Job status constants
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known job states
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further state transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the persisted state of one itinerary generation request
type Record struct {
	ID           string
	Destination  string
	DurationDays int
	Status       Status
	RetryCount   int
	Result       string // serialized itinerary, set only when completed
	Error        string // set only when failed
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Job carries the immutable inputs of a record to background execution.
// FirstAttempt is the stored retry count a redelivered job resumes from.
type Job struct {
	ID           string `json:"job_id"`
	Destination  string `json:"destination"`
	DurationDays int    `json:"duration_days"`
	FirstAttempt int    `json:"-"`
}

// NewRecord builds the initial processing record for a submission
func NewRecord(destination string, durationDays int, now time.Time) Record {
	return Record{
		Destination:  destination,
		DurationDays: durationDays,
		Status:       StatusProcessing,
		RetryCount:   0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Job returns the background execution inputs for the record
func (r *Record) Job() Job {
	return Job{
		ID:           r.ID,
		Destination:  r.Destination,
		DurationDays: r.DurationDays,
		FirstAttempt: r.RetryCount,
	}
}
