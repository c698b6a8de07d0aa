package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealwise/backend/internal/service"
)

// TelemetryHandler accepts daily-activity payloads from bound devices.
type TelemetryHandler struct {
	telemetry *service.TelemetryService
}

// NewTelemetryHandler creates a new TelemetryHandler instance
func NewTelemetryHandler(telemetry *service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry}
}

// RegisterRoutes registers the telemetry routes
func (h *TelemetryHandler) RegisterRoutes(router *gin.RouterGroup) {
	garmin := router.Group("/garmin")
	{
		garmin.POST("/daily", h.IngestDaily)
	}
}

// IngestDaily handles POST /api/garmin/daily
func (h *TelemetryHandler) IngestDaily(c *gin.Context) {
	var payload service.DailyTelemetry
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid deviceId/timestamp"})
		return
	}

	err := h.telemetry.IngestDaily(c.Request.Context(), &payload, c.GetHeader("X-Device-Secret"))
	if err != nil {
		switch err {
		case service.ErrDeviceNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
		case service.ErrDeviceSecret:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device secret"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
