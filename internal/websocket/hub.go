package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"metrics-relay/internal/metrics"
)

var (
	ErrClientDisconnected = errors.New("client disconnected")
	ErrHubStopped         = errors.New("hub stopped")
	ErrNotRegistered      = errors.New("connection has not registered a user identity")
	ErrInvalidTopic       = errors.New("invalid topic")
	ErrInvalidPayload     = errors.New("invalid payload")
)

const (
	systemSender = "system"
	welcomeText  = "Welcome to Social Media Empire Real-time Platform!"
)

// Session is a transport-level client session attached to the hub.
type Session interface {
	Sender
	ID() string
	Close() error
}

// Presence records which users currently hold at least one connection.
type Presence interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

type Options struct {
	// TickInterval drives the synthetic generator and the heartbeat.
	TickInterval time.Duration
	// SyntheticMetrics enables the placeholder analytics generator.
	SyntheticMetrics bool
	// RequireIdentity rejects topic subscriptions before user:connect.
	RequireIdentity bool
	PresenceTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		TickInterval:     5 * time.Second,
		SyntheticMetrics: true,
		RequireIdentity:  true,
		PresenceTimeout:  3 * time.Second,
	}
}

type inboundEvent struct {
	connID   string
	envelope Envelope
}

type publishRequest struct {
	topic   Topic
	payload Payload
}

type presenceUpdate struct {
	userID string
	online bool
}

// presenceQueueSize bounds presence writes waiting on a slow store.
const presenceQueueSize = 256

type directRequest struct {
	userID  string
	event   EventName
	payload any
}

// Stats is a point-in-time view of relay state.
type Stats struct {
	Connections int           `json:"connections"`
	Registered  int           `json:"registered"`
	Topics      map[Topic]int `json:"topics"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Hub owns the connection registry and the topic index. Every mutation and
// every fan-out runs on the goroutine executing Run, so neither structure
// needs locking.
type Hub struct {
	opts      Options
	registry  *Registry
	index     *TopicIndex
	generator *MetricGenerator
	presence  Presence

	attach   chan Session
	detach   chan string
	inbound  chan inboundEvent
	publish  chan publishRequest
	direct   chan directRequest
	queries  chan func()
	sessions map[string]Session

	// Presence writes are applied in order by a single worker.
	presenceQ    chan presenceUpdate
	presenceDone chan struct{}

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	now    func() time.Time
	logger *slog.Logger
}

// NewHub builds a hub. presence and generator may be nil; a nil generator is
// replaced by a randomly seeded one.
func NewHub(opts Options, presence Presence, generator *MetricGenerator, logger *slog.Logger) *Hub {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultOptions().TickInterval
	}
	if opts.PresenceTimeout <= 0 {
		opts.PresenceTimeout = DefaultOptions().PresenceTimeout
	}
	if generator == nil {
		generator = NewMetricGenerator(nil, Platforms)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		opts:      opts,
		registry:  NewRegistry(),
		index:     NewTopicIndex(opts.RequireIdentity),
		generator: generator,
		presence:  presence,
		attach:    make(chan Session),
		detach:    make(chan string),
		inbound:   make(chan inboundEvent),
		publish:   make(chan publishRequest),
		direct:    make(chan directRequest),
		queries:   make(chan func()),
		sessions:  make(map[string]Session),

		presenceQ:    make(chan presenceUpdate, presenceQueueSize),
		presenceDone: make(chan struct{}),

		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		now:    time.Now,
		logger: logger.With("component", "relay"),
	}
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)

	ticker := time.NewTicker(h.opts.TickInterval)
	defer ticker.Stop()

	if h.presence != nil {
		go h.presenceLoop()
	} else {
		close(h.presenceDone)
	}

	h.logger.Info("Relay hub started", "tick", h.opts.TickInterval, "synthetic", h.opts.SyntheticMetrics)

	for {
		select {
		case s := <-h.attach:
			h.attachSession(s)

		case id := <-h.detach:
			h.disconnect(id, "client closed")

		case ev := <-h.inbound:
			h.handleEvent(ev.connID, ev.envelope)

		case req := <-h.publish:
			h.fanOut(req.topic, req.payload.Event(), req.payload)

		case req := <-h.direct:
			h.fanOut(UserTopic(req.userID), req.event, req.payload)

		case fn := <-h.queries:
			fn()

		case <-ticker.C:
			h.tick()

		case <-h.ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Stop cancels the hub and waits for Run to return.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

// Attach hands a newly connected session to the hub.
func (h *Hub) Attach(ctx context.Context, s Session) error {
	return send(ctx, h, h.attach, s)
}

// Detach reports that the session's transport is gone.
func (h *Hub) Detach(ctx context.Context, id string) error {
	return send(ctx, h, h.detach, id)
}

// Dispatch delivers one inbound client frame to the hub.
func (h *Hub) Dispatch(ctx context.Context, id string, env Envelope) error {
	return send(ctx, h, h.inbound, inboundEvent{connID: id, envelope: env})
}

// Publish fans payload out to every member of topic. An empty topic routes the
// payload to its own Topic(). Publish returns once the hub has accepted the
// request; delivery is fire-and-forget.
func (h *Hub) Publish(ctx context.Context, topic Topic, payload Payload) error {
	if payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	payload.stamp(h.now())
	if err := payload.Validate(); err != nil {
		return err
	}
	if topic == "" {
		topic = payload.Topic()
	}
	if err := topic.Validate(); err != nil {
		return err
	}
	return send(ctx, h, h.publish, publishRequest{topic: topic, payload: payload})
}

// SendToUser delivers an event to every connection bound to userID.
func (h *Hub) SendToUser(ctx context.Context, userID string, event EventName, payload any) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidTopic)
	}
	return send(ctx, h, h.direct, directRequest{userID: userID, event: event, payload: payload})
}

// Stats returns a snapshot of the registry and topic index.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	result := make(chan Stats, 1)
	query := func() {
		result <- Stats{
			Connections: h.registry.Len(),
			Registered:  h.registry.RegisteredLen(),
			Topics:      h.index.Counts(),
			Timestamp:   h.now(),
		}
	}
	if err := send(ctx, h, h.queries, query); err != nil {
		return Stats{}, err
	}
	return <-result, nil
}

func send[T any](ctx context.Context, h *Hub, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) attachSession(s Session) {
	conn := h.registry.Add(s.ID(), s, h.now())
	h.sessions[s.ID()] = s
	metrics.RelayConnections.Set(float64(h.registry.Len()))

	h.logger.Info("Client connected", "clientID", conn.ID)

	h.sendTo(conn, EventMessage, &ChatMessage{
		Text:      welcomeText,
		SenderID:  systemSender,
		Timestamp: h.now(),
	})
}

// disconnect purges the connection from the topic index and the registry in
// one step. Unknown ids are ignored.
func (h *Hub) disconnect(id, reason string) {
	conn, ok := h.registry.Get(id)
	if !ok {
		return
	}

	topics := h.index.Purge(conn)
	h.registry.Remove(id)
	delete(h.sessions, id)

	metrics.RelayConnections.Set(float64(h.registry.Len()))
	metrics.RelayTopics.Set(float64(h.index.Len()))

	h.logger.Info("Client disconnected", "clientID", id, "userID", conn.UserID, "topics", len(topics), "reason", reason)

	if conn.Registered() && len(h.registry.ConnectionsOf(conn.UserID)) == 0 {
		h.updatePresence(conn.UserID, false)
	}
}

// fanOut encodes payload once and sends the same frame to every member of
// topic. A failing member never prevents delivery to the others.
func (h *Hub) fanOut(topic Topic, event EventName, payload any) int {
	members := h.index.MembersOf(topic)
	if len(members) == 0 {
		return 0
	}

	frame, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", event, "topic", topic, "error", err)
		return 0
	}

	delivered := 0
	var gone []string
	for _, conn := range members {
		if err := conn.Send(frame); err != nil {
			metrics.RelayDeliveries.WithLabelValues("failed").Inc()
			h.logger.Warn("Delivery failed", "clientID", conn.ID, "topic", topic, "event", event, "error", err)
			if errors.Is(err, ErrClientDisconnected) {
				gone = append(gone, conn.ID)
			}
			continue
		}
		delivered++
	}

	for _, id := range gone {
		h.disconnect(id, "send failed")
	}

	metrics.RelayPublished.WithLabelValues(string(event)).Inc()
	metrics.RelayDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	h.logger.Debug("Event relayed", "event", event, "topic", topic, "delivered", delivered, "members", len(members))
	return delivered
}

// broadcast sends an event to every live connection regardless of topic.
func (h *Hub) broadcast(event EventName, payload any) int {
	frame, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "event", event, "error", err)
		return 0
	}

	delivered := 0
	var gone []string
	for _, conn := range h.registry.Snapshot() {
		if err := conn.Send(frame); err != nil {
			metrics.RelayDeliveries.WithLabelValues("failed").Inc()
			if errors.Is(err, ErrClientDisconnected) {
				gone = append(gone, conn.ID)
			}
			continue
		}
		delivered++
	}
	for _, id := range gone {
		h.disconnect(id, "send failed")
	}
	metrics.RelayDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	return delivered
}

// sendTo delivers a single event to one connection only.
func (h *Hub) sendTo(conn *Connection, event EventName, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", event, "clientID", conn.ID, "error", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		metrics.RelayDeliveries.WithLabelValues("failed").Inc()
		h.logger.Debug("Direct send failed", "clientID", conn.ID, "event", event, "error", err)
		if errors.Is(err, ErrClientDisconnected) {
			h.disconnect(conn.ID, "send failed")
		}
		return
	}
	metrics.RelayDeliveries.WithLabelValues("delivered").Inc()
}

// tick runs the periodic tasks. Each task recovers on its own so one failure
// never stops the other or the ticker.
func (h *Hub) tick() {
	if h.opts.SyntheticMetrics {
		h.safely("synthetic", func() {
			sample := h.generator.Next(h.now())
			h.fanOut(sample.Topic(), sample.Event(), sample)
		})
	}
	h.safely("heartbeat", func() {
		h.broadcast(EventHeartbeat, HeartbeatData{
			Timestamp:        h.now(),
			ConnectedClients: h.registry.Len(),
		})
	})
}

func (h *Hub) safely(task string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RelayTickFailures.WithLabelValues(task).Inc()
			h.logger.Error("Periodic task failed", "task", task, "panic", r)
		}
	}()
	fn()
}

// updatePresence queues a presence write. Writes for all users go through one
// FIFO so an offline write never overtakes the online write before it.
func (h *Hub) updatePresence(userID string, online bool) {
	if h.presence == nil {
		return
	}
	select {
	case h.presenceQ <- presenceUpdate{userID: userID, online: online}:
	default:
		h.logger.Warn("Presence queue full, dropping update", "userID", userID, "online", online)
	}
}

func (h *Hub) presenceLoop() {
	defer close(h.presenceDone)
	for u := range h.presenceQ {
		h.applyPresence(u)
	}
}

func (h *Hub) applyPresence(u presenceUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.PresenceTimeout)
	defer cancel()

	var err error
	if u.online {
		err = h.presence.SetUserOnline(ctx, u.userID)
	} else {
		err = h.presence.SetUserOffline(ctx, u.userID)
	}
	if err != nil {
		h.logger.Warn("Failed to update presence", "userID", u.userID, "online", u.online, "error", err)
	}
}

func (h *Hub) shutdown() {
	h.logger.Info("Relay hub shutting down", "connections", h.registry.Len())
	for id, s := range h.sessions {
		if err := s.Close(); err != nil {
			h.logger.Debug("Error closing session", "clientID", id, "error", err)
		}
	}

	// Pending presence writes are flushed before Stop returns.
	if h.presence != nil {
		close(h.presenceQ)
	}
	<-h.presenceDone
}
