package itinerary

import "strings"

// ValidateSubmission checks the inputs of a new itinerary request
func ValidateSubmission(destination string, durationDays int) error {
	if strings.TrimSpace(destination) == "" {
		return &ValidationError{Field: "destination", Message: "must not be empty"}
	}
	if durationDays <= 0 {
		return &ValidationError{Field: "durationDays", Message: "must be a positive integer"}
	}
	return nil
}
