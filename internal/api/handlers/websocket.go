package handlers

import (
	"metrics-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader *gws.Upgrader
	opts     websocket.ClientOptions
}

func NewWSHandler(hub *websocket.Hub, upgrader *gws.Upgrader, opts websocket.ClientOptions) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader, opts: opts}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Establish a relay session. Identity is sent afterwards with user:connect
// @Tags websocket
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Router /socketio [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	websocket.ServeWS(h.hub, h.upgrader, h.opts, c.Writer, c.Request)
}
