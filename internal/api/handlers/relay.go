package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"metrics-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

type RelayHandler struct {
	hub *websocket.Hub
}

func NewRelayHandler(hub *websocket.Hub) *RelayHandler {
	return &RelayHandler{hub: hub}
}

type publishRequest struct {
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// Stats godoc
// @Summary Relay state snapshot
// @Tags relay
// @Produce json
// @Success 200 {object} websocket.Stats
// @Failure 503 {object} map[string]interface{}
// @Router /v1/relay/stats [get]
func (h *RelayHandler) Stats(c *gin.Context) {
	stats, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Publish godoc
// @Summary Publish an event into the relay
// @Description The payload carries its kind; the topic defaults to the payload's own topic
// @Tags relay
// @Accept json
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /v1/relay/events [post]
func (h *RelayHandler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var topic websocket.Topic
	if req.Topic != "" {
		parsed, err := websocket.ParseTopic(req.Topic)
		if err != nil || parsed.IsUser() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic: " + req.Topic})
			return
		}
		topic = parsed
	}

	payload, err := websocket.DecodeTaggedPayload(req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if topic == "" {
		topic = payload.Topic()
	}

	if err := h.hub.Publish(c.Request.Context(), topic, payload); err != nil {
		switch {
		case errors.Is(err, websocket.ErrInvalidPayload), errors.Is(err, websocket.ErrInvalidTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "topic": topic})
}
