package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"metrics-relay/internal/models"
	"metrics-relay/internal/repository"

	"github.com/gin-gonic/gin"
)

var errNoDatabase = errors.New("database is not configured")

type HealthHandler struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewHealthHandler builds the diagnostics handlers. users may be nil when no
// database is configured.
func NewHealthHandler(users repository.UserRepository) *HealthHandler {
	return &HealthHandler{users: users, now: time.Now}
}

// Health godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Social Media Empire Platform is running",
		"timestamp": h.now().UTC(),
	})
}

// Test godoc
// @Summary API smoke test
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /test [get]
func (h *HealthHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Social Media Empire Platform API is working",
		"timestamp": h.now().UTC(),
	})
}

// DBTest godoc
// @Summary Database round trip
// @Description Counts users, then creates and deletes a probe user
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /db-test [get]
func (h *HealthHandler) DBTest(c *gin.Context) {
	count, err := h.roundTrip(c)
	if err != nil {
		slog.Error("Database test failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to connect to the database",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Database connection is working correctly",
		"userCount": count,
		"timestamp": h.now().UTC(),
	})
}

func (h *HealthHandler) roundTrip(c *gin.Context) (int64, error) {
	if h.users == nil {
		return 0, errNoDatabase
	}
	ctx := c.Request.Context()

	count, err := h.users.Count(ctx)
	if err != nil {
		return 0, err
	}

	probe := &models.User{
		Email: fmt.Sprintf("test-%d@example.com", h.now().UnixNano()),
		Name:  "Test User",
		Role:  "USER",
	}
	if err := h.users.Create(ctx, probe); err != nil {
		return 0, err
	}
	if err := h.users.Delete(ctx, probe.ID); err != nil {
		return 0, err
	}
	return count, nil
}
