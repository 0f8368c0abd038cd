package handler

import (
	"net/http"

	"github.com/cuongbtq/itinerary-be/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{Status: "healthy", Service: h.service}
	code := http.StatusOK

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
		for name, checker := range h.checks {
			if err := checker.HealthCheck(c.Request.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	c.JSON(code, resp)
}
