package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mealwise/backend/internal/middleware"
	"github.com/mealwise/backend/internal/service"
)

// AdminHandler exposes the access-control admin actions over HTTP. All routes
// require the admin bearer token.
type AdminHandler struct {
	directory *service.UserDirectoryService
	sender    service.MessageSender
}

// NewAdminHandler creates a new AdminHandler instance. The sender is optional
// and, when present, is used to notify approved users.
func NewAdminHandler(directory *service.UserDirectoryService, sender service.MessageSender) *AdminHandler {
	return &AdminHandler{directory: directory, sender: sender}
}

// RegisterRoutes registers the admin routes
func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup, secret string) {
	admin := router.Group("/admin")
	admin.Use(middleware.AdminAuth(secret))
	{
		admin.GET("/pending", h.ListPending)
		admin.POST("/approve", h.Approve)
	}
}

// ListPending handles GET /api/admin/pending
func (h *AdminHandler) ListPending(c *gin.Context) {
	users, err := h.directory.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": users})
}

// Approve handles POST /api/admin/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	var req struct {
		TelegramUserID string `json:"telegramUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegramUserId is required"})
		return
	}

	telegramUserID, err := strconv.ParseInt(req.TelegramUserID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegramUserId must be a valid integer"})
		return
	}

	outcome, user, err := h.directory.Approve(c.Request.Context(), telegramUserID)
	if err != nil {
		switch err {
		case service.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case service.ErrAccessDenied:
			c.JSON(http.StatusConflict, gin.H{"error": "User is banned"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	if outcome == service.ApproveApproved && h.sender != nil {
		_ = h.sender.SendMessage(c.Request.Context(), user.TelegramUserID,
			"🎉 Your access to the Nutrition Assistant has been approved!\n\nYou can now send meal photos and view your nutrition stats.")
	}

	c.JSON(http.StatusOK, gin.H{"status": string(outcome), "user": user})
}
