package dto

// CreateItineraryRequest is the body of a submission. DurationDays is a
// pointer so a missing field can be told apart from zero.
type CreateItineraryRequest struct {
	Destination  *string `json:"destination"`
	DurationDays *int    `json:"durationDays"`
}

type CreateItineraryResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

type ItineraryStatusResponse struct {
	Success bool           `json:"success"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    *ItineraryData `json:"data,omitempty"`
}

type ItineraryData struct {
	Destination  string `json:"destination"`
	DurationDays int    `json:"duration_days"`
	Itinerary    string `json:"itinerary"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}
