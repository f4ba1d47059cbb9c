package websocket

import (
	"encoding/json"
	"errors"

	"metrics-relay/internal/metrics"
)

/*
==============================================================================
  Connection lifecycle: inbound client events
==============================================================================
*/

// handleEvent routes one inbound frame. Events for connections that are
// already gone, unknown events and malformed payloads are dropped without a
// reply.
func (h *Hub) handleEvent(id string, env Envelope) {
	conn, ok := h.registry.Get(id)
	if !ok {
		h.logger.Debug("Event for unknown connection ignored", "clientID", id, "event", env.Event)
		return
	}

	switch env.Event {
	case EventUserConnect:
		h.onUserConnect(conn, env.Data)

	case EventSubscribePlatform:
		if name, ok := decodeName(env.Data, "platform"); ok {
			h.subscribe(conn, PlatformTopic(name))
		} else {
			h.dropMalformed(conn, env.Event)
		}
	case EventUnsubscribePlatform:
		if name, ok := decodeName(env.Data, "platform"); ok {
			h.unsubscribe(conn, PlatformTopic(name))
		} else {
			h.dropMalformed(conn, env.Event)
		}

	case EventSubscribeCampaign:
		if id, ok := decodeName(env.Data, "campaignId"); ok {
			h.subscribe(conn, CampaignTopic(id))
		} else {
			h.dropMalformed(conn, env.Event)
		}
	case EventUnsubscribeCampaign:
		if id, ok := decodeName(env.Data, "campaignId"); ok {
			h.unsubscribe(conn, CampaignTopic(id))
		} else {
			h.dropMalformed(conn, env.Event)
		}

	case EventSubscribeCompetitors:
		h.subscribe(conn, TopicCompetitors)
	case EventUnsubscribeCompetitors:
		h.unsubscribe(conn, TopicCompetitors)

	case EventAnalyticsUpdate:
		h.relayUpdate(conn, KindAnalytics, env)
	case EventCampaignUpdate:
		h.relayUpdate(conn, KindCampaign, env)
	case EventCompetitorUpdate:
		h.relayUpdate(conn, KindCompetitor, env)

	case EventRequestInitialData:
		h.sendInitialData(conn)

	case EventMessage:
		h.echo(conn, env.Data)

	default:
		metrics.RelayInboundDropped.WithLabelValues("unknown_event").Inc()
		h.logger.Debug("Unknown event ignored", "clientID", conn.ID, "event", env.Event)
	}
}

func (h *Hub) onUserConnect(conn *Connection, raw json.RawMessage) {
	var data UserConnectData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		h.dropMalformed(conn, EventUserConnect)
		return
	}

	prev, _ := h.registry.Register(conn.ID, data.UserID, data.Email, h.now())
	if prev != "" && prev != data.UserID {
		h.index.Unsubscribe(conn, UserTopic(prev))
		if len(h.registry.ConnectionsOf(prev)) == 0 {
			h.updatePresence(prev, false)
		}
	}
	// Registered connections always satisfy the identity requirement.
	_ = h.index.Subscribe(conn, UserTopic(data.UserID))
	metrics.RelayTopics.Set(float64(h.index.Len()))

	h.logger.Info("User connected", "clientID", conn.ID, "userID", data.UserID)
	h.updatePresence(data.UserID, true)
}

func (h *Hub) subscribe(conn *Connection, topic Topic) {
	if err := topic.Validate(); err != nil || topic.IsUser() {
		h.dropMalformed(conn, EventName("subscribe"))
		return
	}
	if err := h.index.Subscribe(conn, topic); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			h.logger.Debug("Subscription rejected", "clientID", conn.ID, "topic", topic)
			h.sendTo(conn, EventError, ErrorData{Message: "user:connect is required before subscribing to " + topic.String()})
		}
		return
	}
	metrics.RelayTopics.Set(float64(h.index.Len()))
	h.logger.Info("Client subscribed", "clientID", conn.ID, "userID", conn.UserID, "topic", topic)
}

func (h *Hub) unsubscribe(conn *Connection, topic Topic) {
	if topic.IsUser() {
		return
	}
	if h.index.Unsubscribe(conn, topic) {
		metrics.RelayTopics.Set(float64(h.index.Len()))
		h.logger.Info("Client unsubscribed", "clientID", conn.ID, "userID", conn.UserID, "topic", topic)
	}
}

// relayUpdate validates a producer event and re-emits it to the members of
// the payload's topic.
func (h *Hub) relayUpdate(conn *Connection, kind PayloadKind, env Envelope) {
	payload, err := DecodePayload(kind, env.Data)
	if err != nil {
		h.dropMalformed(conn, env.Event)
		return
	}
	h.fanOut(payload.Topic(), payload.Event(), payload)
}

// sendInitialData replies to the requesting connection only.
func (h *Hub) sendInitialData(conn *Connection) {
	now := h.now()
	h.sendTo(conn, EventInitialAnalytics, InitialAnalyticsData{
		Platforms: Platforms,
		Timestamp: now,
	})
	h.sendTo(conn, EventInitialCampaigns, InitialCampaignsData{
		Campaigns: []CampaignUpdate{},
		Timestamp: now,
	})
	h.sendTo(conn, EventInitialCompetitors, InitialCompetitorsData{
		Competitors: []CompetitorUpdate{},
		Timestamp:   now,
	})
}

// echo answers a legacy chat message on the sender's own connection.
func (h *Hub) echo(conn *Connection, raw json.RawMessage) {
	var msg ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.dropMalformed(conn, EventMessage)
		return
	}
	h.sendTo(conn, EventMessage, &ChatMessage{
		Text:      "Echo: " + msg.Text,
		SenderID:  systemSender,
		Timestamp: h.now(),
	})
}

func (h *Hub) dropMalformed(conn *Connection, event EventName) {
	metrics.RelayInboundDropped.WithLabelValues("malformed").Inc()
	h.logger.Debug("Malformed event ignored", "clientID", conn.ID, "event", event)
}
