package router

import (
	"net/http"

	"github.com/cuongbtq/itinerary-be/internal/api/dto"
	"github.com/cuongbtq/itinerary-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options holds router settings that are not handler dependencies
type Options struct {
	AllowedOrigins []string
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	itineraryHandler := handler.NewItineraryHandler(deps)

	// Original endpoints, kept for existing clients
	r.POST("/create", itineraryHandler.CreateItinerary)
	r.GET("/itinerary", itineraryHandler.GetItineraryByQuery)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		itineraries := v1.Group("/itineraries")
		{
			itineraries.POST("", itineraryHandler.CreateItinerary)
			itineraries.GET("/:id", itineraryHandler.GetItinerary)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Invalid endpoint"})
	})

	return r
}
