package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"metrics-relay/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to hand a request to the hub
	hubWait = 5 * time.Second
)

type ClientOptions struct {
	// SendBuffer is the number of frames queued before the client is dropped.
	SendBuffer int
	// MaxMessageSize limits inbound frames, in bytes.
	MaxMessageSize int64
	// InboundRate and InboundBurst throttle events read from the client.
	InboundRate  rate.Limit
	InboundBurst int
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:     256,
		MaxMessageSize: 8 << 10,
		InboundRate:    rate.Limit(20),
		InboundBurst:   40,
	}
}

// Client is one websocket session. The hub writes through Send, which only
// enqueues; writePump drains the queue onto the socket.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	opts    ClientOptions

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	defaults := DefaultClientOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}
	if opts.InboundRate <= 0 {
		opts.InboundRate = defaults.InboundRate
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = defaults.InboundBurst
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	return &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		limiter: rate.NewLimiter(opts.InboundRate, opts.InboundBurst),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		logger:  hub.logger.With("clientID", id),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a frame without blocking. A full queue means the peer is not
// keeping up; the client is closed and ErrClientDisconnected returned.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientDisconnected
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn("Send buffer full, closing client")
		c.closeLocked()
		return ErrClientDisconnected
	}
}

// Close stops the session. The write pump sends a close frame and shuts the
// socket, which in turn ends the read pump.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

func (c *Client) readPump() {
	defer func() {
		c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), hubWait)
		defer cancel()
		if err := c.hub.Detach(ctx, c.id); err != nil && !errors.Is(err, ErrHubStopped) {
			c.logger.Warn("Failed to detach client", "error", err)
		}

		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Error closing connection", "error", err)
		}
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			} else {
				c.logger.Debug("WebSocket connection closed", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.RelayInboundDropped.WithLabelValues("rate_limited").Inc()
			c.logger.Debug("Inbound event rate limited")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || !env.Event.IsInbound() {
			metrics.RelayInboundDropped.WithLabelValues("malformed").Inc()
			c.logger.Debug("Ignoring unreadable frame", "size", len(data))
			continue
		}

		ctx, cancel := context.WithTimeout(c.ctx, hubWait)
		err = c.hub.Dispatch(ctx, c.id, env)
		cancel()
		if err != nil {
			if errors.Is(err, ErrHubStopped) || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("Failed to dispatch event", "event", env.Event, "error", err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Error writing message", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Error sending ping", "error", err)
				c.Close()
				return
			}
		}
	}
}

// ServeWS upgrades the request and attaches the new client to the hub.
func ServeWS(hub *Hub, upgrader *websocket.Upgrader, opts ClientOptions, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Failed to upgrade WebSocket connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(hub, conn, opts)

	ctx, cancel := context.WithTimeout(r.Context(), hubWait)
	defer cancel()
	if err := hub.Attach(ctx, client); err != nil {
		client.logger.Error("Failed to attach client", "error", err)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
