package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PresenceReader is satisfied by services.RedisService.
type PresenceReader interface {
	IsUserOnline(ctx context.Context, userID string) (bool, error)
	GetOnlineUsers(ctx context.Context) ([]string, error)
}

type PresenceHandler struct {
	presence PresenceReader
}

// NewPresenceHandler builds the presence lookups. A nil reader makes every
// lookup answer 503.
func NewPresenceHandler(presence PresenceReader) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// OnlineUsers godoc
// @Summary List users with at least one live relay connection
// @Tags presence
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /v1/presence [get]
func (h *PresenceHandler) OnlineUsers(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence tracking is disabled"})
		return
	}

	users, err := h.presence.GetOnlineUsers(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list online users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read presence"})
		return
	}
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// UserStatus godoc
// @Summary Presence of one user
// @Tags presence
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /v1/presence/{userId} [get]
func (h *PresenceHandler) UserStatus(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence tracking is disabled"})
		return
	}

	userID := c.Param("userId")
	online, err := h.presence.IsUserOnline(c.Request.Context(), userID)
	if err != nil {
		slog.Error("Failed to read user presence", "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "online": online})
}
