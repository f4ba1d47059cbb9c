package websocket

import (
	"encoding/json"
	"time"
)

// EventName identifies a frame on the wire. Client and server share one namespace.
type EventName string

// Client to server events
const (
	EventUserConnect            EventName = "user:connect"
	EventSubscribePlatform      EventName = "subscribe:platform"
	EventUnsubscribePlatform    EventName = "unsubscribe:platform"
	EventSubscribeCampaign      EventName = "subscribe:campaign"
	EventUnsubscribeCampaign    EventName = "unsubscribe:campaign"
	EventSubscribeCompetitors   EventName = "subscribe:competitors"
	EventUnsubscribeCompetitors EventName = "unsubscribe:competitors"
	EventAnalyticsUpdate        EventName = "analytics:update"
	EventCampaignUpdate         EventName = "campaign:update"
	EventCompetitorUpdate       EventName = "competitor:update"
	EventRequestInitialData     EventName = "request:initial-data"
)

// Server to client events
const (
	EventAnalyticsUpdated   EventName = "analytics:updated"
	EventCampaignUpdated    EventName = "campaign:updated"
	EventCompetitorUpdated  EventName = "competitor:updated"
	EventInitialAnalytics   EventName = "initial:analytics"
	EventInitialCampaigns   EventName = "initial:campaigns"
	EventInitialCompetitors EventName = "initial:competitors"
	EventHeartbeat          EventName = "system:heartbeat"
	EventError              EventName = "error"
)

// EventMessage is used in both directions: the legacy echo request and the
// system chat-style message.
const EventMessage EventName = "message"

func (e EventName) String() string {
	return string(e)
}

// IsInbound reports whether clients are allowed to send e.
func (e EventName) IsInbound() bool {
	switch e {
	case EventUserConnect, EventSubscribePlatform, EventUnsubscribePlatform,
		EventSubscribeCampaign, EventUnsubscribeCampaign,
		EventSubscribeCompetitors, EventUnsubscribeCompetitors,
		EventAnalyticsUpdate, EventCampaignUpdate, EventCompetitorUpdate,
		EventRequestInitialData, EventMessage:
		return true
	default:
		return false
	}
}

// Envelope is the JSON frame exchanged over the socket.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data under the given event name into a single frame.
func Encode(event EventName, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Inbound payload shapes

type UserConnectData struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type PlatformData struct {
	Platform string `json:"platform"`
}

type CampaignData struct {
	CampaignID string `json:"campaignId"`
}

type InitialDataRequest struct {
	UserID string `json:"userId"`
}

// Outbound payload shapes

type HeartbeatData struct {
	Timestamp        time.Time `json:"timestamp"`
	ConnectedClients int       `json:"connectedClients"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type InitialAnalyticsData struct {
	Platforms []string  `json:"platforms"`
	Timestamp time.Time `json:"timestamp"`
}

type InitialCampaignsData struct {
	Campaigns []CampaignUpdate `json:"campaigns"`
	Timestamp time.Time        `json:"timestamp"`
}

type InitialCompetitorsData struct {
	Competitors []CompetitorUpdate `json:"competitors"`
	Timestamp   time.Time          `json:"timestamp"`
}

// decodeName reads a topic argument that clients send either as a bare JSON
// string or as an object carrying the value under field.
func decodeName(raw json.RawMessage, field string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	if err := json.Unmarshal(obj[field], &s); err != nil {
		return "", false
	}
	return s, s != ""
}
