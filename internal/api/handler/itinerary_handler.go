package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/itinerary-be/internal/api/dto"
	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/gin-gonic/gin"
)

const (
	msgMissingFields   = "Invalid input: 'destination' and 'durationDays' are required"
	msgStarted         = "Itinerary generation started"
	msgGenerating      = "Itinerary is still being generated"
	msgNotFound        = "Itinerary not found"
	msgFailedPrefix    = "Itinerary generation failed. "
	msgInternalError   = "Internal server error"
	msgIDRequired      = "id is required"
	statusNotFoundView = "not_found"
)

// CreateItinerary handles POST /create and POST /api/v1/itineraries.
// It answers as soon as the job record exists; generation continues in the
// background.
func (h *ItineraryHandler) CreateItinerary(c *gin.Context) {
	var req dto.CreateItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgMissingFields})
		return
	}
	if req.Destination == nil || req.DurationDays == nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgMissingFields})
		return
	}

	id, err := h.submitter.Submit(c.Request.Context(), *req.Destination, *req.DurationDays)
	if err != nil {
		var validationErr *itinerary.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: validationErr.Error()})
			return
		}

		h.logger.Error("Failed to submit itinerary", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternalError})
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateItineraryResponse{
		Success: true,
		ID:      id,
		Message: msgStarted,
	})
}

// GetItineraryByQuery handles GET /itinerary?id=
func (h *ItineraryHandler) GetItineraryByQuery(c *gin.Context) {
	h.getItinerary(c, c.Query("id"))
}

// GetItinerary handles GET /api/v1/itineraries/:id
func (h *ItineraryHandler) GetItinerary(c *gin.Context) {
	h.getItinerary(c, c.Param("id"))
}

func (h *ItineraryHandler) getItinerary(c *gin.Context, id string) {
	if id == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgIDRequired})
		return
	}

	rec, err := h.records.Get(c.Request.Context(), id)
	if err != nil && !errors.Is(err, itinerary.ErrNotFound) {
		h.logger.Error("Failed to load itinerary",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternalError})
		return
	}
	if err != nil {
		rec = nil
	}

	view, err := itinerary.Describe(rec)
	if err != nil {
		h.logger.Error("Stored itinerary is inconsistent",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternalError})
		return
	}

	status, body := statusResponse(view)
	c.JSON(status, body)
}

// statusResponse renders a StatusView as the polling envelope
func statusResponse(view itinerary.StatusView) (int, dto.ItineraryStatusResponse) {
	if !view.Found {
		return http.StatusNotFound, dto.ItineraryStatusResponse{
			Status:  statusNotFoundView,
			Message: msgNotFound,
		}
	}

	switch view.Status {
	case itinerary.ViewCompleted:
		return http.StatusOK, dto.ItineraryStatusResponse{
			Success: true,
			Status:  view.Status,
			Data: &dto.ItineraryData{
				Destination:  view.Destination,
				DurationDays: view.DurationDays,
				Itinerary:    view.Result,
			},
		}
	case itinerary.ViewFailed:
		return http.StatusOK, dto.ItineraryStatusResponse{
			Status:  view.Status,
			Message: msgFailedPrefix + view.Message,
		}
	default:
		return http.StatusAccepted, dto.ItineraryStatusResponse{
			Status:  view.Status,
			Message: msgGenerating,
		}
	}
}
