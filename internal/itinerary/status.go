package itinerary

import "fmt"

// External status values exposed to polling clients
const (
	ViewGenerating = "generating"
	ViewCompleted  = "completed"
	ViewFailed     = "failed"
)

// unknownError is reported for failed records that carry no message
const unknownError = "unknown error"

// StatusView is the client-facing projection of a Record
type StatusView struct {
	Found        bool   `json:"-"`
	Status       string `json:"status,omitempty"`
	Destination  string `json:"destination,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
	Result       string `json:"itinerary,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Describe maps a record to its StatusView. A nil record is reported as not
// found. Result and error are only ever exposed for terminal records.
func Describe(rec *Record) (StatusView, error) {
	if rec == nil {
		return StatusView{Found: false}, nil
	}

	switch rec.Status {
	case StatusProcessing:
		return StatusView{Found: true, Status: ViewGenerating}, nil

	case StatusCompleted:
		return StatusView{
			Found:        true,
			Status:       ViewCompleted,
			Destination:  rec.Destination,
			DurationDays: rec.DurationDays,
			Result:       rec.Result,
		}, nil

	case StatusFailed:
		message := rec.Error
		if message == "" {
			message = unknownError
		}
		return StatusView{Found: true, Status: ViewFailed, Message: message}, nil

	default:
		return StatusView{}, fmt.Errorf("%w: %q for job %s", ErrInconsistentStatus, rec.Status, rec.ID)
	}
}
