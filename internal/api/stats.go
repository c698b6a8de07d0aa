package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mealwise/backend/internal/service"
)

// StatsHandler serves time-windowed nutrition statistics.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// RegisterRoutes registers the stats routes
func (h *StatsHandler) RegisterRoutes(router *gin.RouterGroup) {
	stats := router.Group("/stats")
	{
		stats.GET("/n", h.GetStats)
	}
}

// GetStats handles GET /api/stats/n?telegramUserId=123&days=7
func (h *StatsHandler) GetStats(c *gin.Context) {
	idStr := c.Query("telegramUserId")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegramUserId is required"})
		return
	}

	telegramUserID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegramUserId must be a valid integer"})
		return
	}

	// Malformed or non-positive day counts fall back to the default window.
	days := service.DefaultStatsDays
	if daysStr := c.Query("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	resp, err := h.stats.GetStats(c.Request.Context(), telegramUserID, days)
	if err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
