package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
)

// Submitter accepts new itinerary jobs
type Submitter interface {
	Submit(ctx context.Context, destination string, durationDays int) (string, error)
}

// RecordReader loads job records for polling
type RecordReader interface {
	Get(ctx context.Context, id string) (*itinerary.Record, error)
}

// HealthChecker is implemented by backing services that can be pinged
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	ServiceName  string
	Submitter    Submitter
	Records      RecordReader
	HealthChecks map[string]HealthChecker
}

// ItineraryHandler handles itinerary submission and polling
type ItineraryHandler struct {
	logger    *slog.Logger
	submitter Submitter
	records   RecordReader
}

// NewItineraryHandler creates a new ItineraryHandler instance
func NewItineraryHandler(deps *Dependencies) *ItineraryHandler {
	return &ItineraryHandler{
		logger:    deps.Logger,
		submitter: deps.Submitter,
		records:   deps.Records,
	}
}

// HealthHandler reports service and backing store health
type HealthHandler struct {
	service string
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{service: deps.ServiceName, checks: deps.HealthChecks}
}
