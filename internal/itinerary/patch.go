package itinerary

import "time"

// Patch is a partial update of a Record. Nil fields are left untouched by
// the store; UpdatedAt is always written.
type Patch struct {
	Status      *Status
	RetryCount  *int
	Result      *string
	Error       *string
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// AttemptFailed records a failed, non-final attempt
func AttemptFailed(attempt int, now time.Time) Patch {
	return Patch{
		RetryCount: &attempt,
		UpdatedAt:  now,
	}
}

// Completed moves a record to the completed state with its result
func Completed(attempt int, result string, now time.Time) Patch {
	status := StatusCompleted
	return Patch{
		Status:      &status,
		RetryCount:  &attempt,
		Result:      &result,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
}

// Failed moves a record to the failed state. A negative attempt leaves the
// retry count untouched.
func Failed(attempt int, message string, now time.Time) Patch {
	status := StatusFailed
	p := Patch{
		Status:      &status,
		Error:       &message,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
	if attempt >= 0 {
		p.RetryCount = &attempt
	}
	return p
}

// Fields lists the record fields the patch writes, in a stable order
func (p Patch) Fields() []string {
	fields := make([]string, 0, 6)
	if p.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if p.RetryCount != nil {
		fields = append(fields, FieldRetryCount)
	}
	if p.Result != nil {
		fields = append(fields, FieldResult)
	}
	if p.Error != nil {
		fields = append(fields, FieldError)
	}
	fields = append(fields, FieldUpdatedAt)
	if p.CompletedAt != nil {
		fields = append(fields, FieldCompletedAt)
	}
	return fields
}

// Apply overwrites the patched fields of r
func (p Patch) Apply(r *Record) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.RetryCount != nil {
		r.RetryCount = *p.RetryCount
	}
	if p.Result != nil {
		r.Result = *p.Result
	}
	if p.Error != nil {
		r.Error = *p.Error
	}
	r.UpdatedAt = p.UpdatedAt
	if p.CompletedAt != nil {
		completedAt := *p.CompletedAt
		r.CompletedAt = &completedAt
	}
}

// Persisted field names shared by the store backends
const (
	FieldDestination  = "destination"
	FieldDurationDays = "durationDays"
	FieldStatus       = "status"
	FieldRetryCount   = "retry_count"
	FieldResult       = "itineraries"
	FieldError        = "error"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
	FieldCompletedAt  = "completedAt"
)
