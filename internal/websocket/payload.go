package websocket

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// PayloadKind discriminates the relayed payload union.
type PayloadKind string

const (
	KindAnalytics  PayloadKind = "analytics"
	KindCampaign   PayloadKind = "campaign"
	KindCompetitor PayloadKind = "competitor"
	KindMessage    PayloadKind = "message"
)

// Payload is one of *AnalyticsUpdate, *CampaignUpdate, *CompetitorUpdate or
// *ChatMessage. Every payload serializes with an explicit "kind" field.
type Payload interface {
	Kind() PayloadKind
	// Topic is the topic the payload fans out to. Chat messages have none.
	Topic() Topic
	// Event is the outbound event name members receive.
	Event() EventName
	Validate() error

	stamp(now time.Time)
}

type AnalyticsUpdate struct {
	Platform    string    `json:"platform"`
	Impressions int64     `json:"impressions"`
	Engagement  float64   `json:"engagement"`
	Reach       int64     `json:"reach"`
	Timestamp   time.Time `json:"timestamp"`
}

type CampaignUpdate struct {
	CampaignID  string    `json:"campaignId"`
	Status      string    `json:"status"`
	Spent       float64   `json:"spent"`
	Performance float64   `json:"performance"`
	Timestamp   time.Time `json:"timestamp"`
}

type CompetitorUpdate struct {
	CompetitorID string    `json:"competitorId"`
	Metric       string    `json:"metric"`
	Value        float64   `json:"value"`
	Change       float64   `json:"change"`
	Timestamp    time.Time `json:"timestamp"`
}

type ChatMessage struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}

func (*AnalyticsUpdate) Kind() PayloadKind  { return KindAnalytics }
func (*CampaignUpdate) Kind() PayloadKind   { return KindCampaign }
func (*CompetitorUpdate) Kind() PayloadKind { return KindCompetitor }
func (*ChatMessage) Kind() PayloadKind      { return KindMessage }

func (a *AnalyticsUpdate) Topic() Topic { return PlatformTopic(a.Platform) }
func (c *CampaignUpdate) Topic() Topic  { return CampaignTopic(c.CampaignID) }
func (*CompetitorUpdate) Topic() Topic  { return TopicCompetitors }
func (*ChatMessage) Topic() Topic       { return "" }

func (*AnalyticsUpdate) Event() EventName  { return EventAnalyticsUpdated }
func (*CampaignUpdate) Event() EventName   { return EventCampaignUpdated }
func (*CompetitorUpdate) Event() EventName { return EventCompetitorUpdated }
func (*ChatMessage) Event() EventName      { return EventMessage }

func (a *AnalyticsUpdate) Validate() error {
	if strings.TrimSpace(a.Platform) == "" {
		return invalid(KindAnalytics, "platform is required")
	}
	if a.Impressions < 0 || a.Reach < 0 {
		return invalid(KindAnalytics, "impressions and reach must not be negative")
	}
	if math.IsNaN(a.Engagement) || a.Engagement < 0 || a.Engagement > 100 {
		return invalid(KindAnalytics, "engagement must be a percentage")
	}
	return nil
}

func (c *CampaignUpdate) Validate() error {
	if strings.TrimSpace(c.CampaignID) == "" {
		return invalid(KindCampaign, "campaignId is required")
	}
	if c.Spent < 0 {
		return invalid(KindCampaign, "spent must not be negative")
	}
	return nil
}

func (c *CompetitorUpdate) Validate() error {
	if strings.TrimSpace(c.CompetitorID) == "" {
		return invalid(KindCompetitor, "competitorId is required")
	}
	if strings.TrimSpace(c.Metric) == "" {
		return invalid(KindCompetitor, "metric is required")
	}
	return nil
}

func (m *ChatMessage) Validate() error {
	if m.Text == "" {
		return invalid(KindMessage, "text is required")
	}
	return nil
}

func (a *AnalyticsUpdate) stamp(now time.Time) {
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
}

func (c *CampaignUpdate) stamp(now time.Time) {
	if c.Timestamp.IsZero() {
		c.Timestamp = now
	}
}

func (c *CompetitorUpdate) stamp(now time.Time) {
	if c.Timestamp.IsZero() {
		c.Timestamp = now
	}
}

func (m *ChatMessage) stamp(now time.Time) {
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
}

func (a AnalyticsUpdate) MarshalJSON() ([]byte, error) {
	type plain AnalyticsUpdate
	return json.Marshal(struct {
		Kind PayloadKind `json:"kind"`
		plain
	}{KindAnalytics, plain(a)})
}

func (c CampaignUpdate) MarshalJSON() ([]byte, error) {
	type plain CampaignUpdate
	return json.Marshal(struct {
		Kind PayloadKind `json:"kind"`
		plain
	}{KindCampaign, plain(c)})
}

func (c CompetitorUpdate) MarshalJSON() ([]byte, error) {
	type plain CompetitorUpdate
	return json.Marshal(struct {
		Kind PayloadKind `json:"kind"`
		plain
	}{KindCompetitor, plain(c)})
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type plain ChatMessage
	return json.Marshal(struct {
		Kind PayloadKind `json:"kind"`
		plain
	}{KindMessage, plain(m)})
}

// NewPayload returns an empty payload value for kind.
func NewPayload(kind PayloadKind) (Payload, error) {
	switch kind {
	case KindAnalytics:
		return &AnalyticsUpdate{}, nil
	case KindCampaign:
		return &CampaignUpdate{}, nil
	case KindCompetitor:
		return &CompetitorUpdate{}, nil
	case KindMessage:
		return &ChatMessage{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, kind)
	}
}

// DecodePayload decodes raw as a payload of the expected kind, stamps a missing
// timestamp and validates it. A "kind" field in raw, when present, must agree.
func DecodePayload(kind PayloadKind, raw json.RawMessage) (Payload, error) {
	var tag struct {
		Kind PayloadKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if tag.Kind != "" && tag.Kind != kind {
		return nil, fmt.Errorf("%w: kind %q does not match %q", ErrInvalidPayload, tag.Kind, kind)
	}
	return decodeInto(kind, raw)
}

// DecodeTaggedPayload decodes a self-describing payload, dispatching on its
// "kind" field.
func DecodeTaggedPayload(raw json.RawMessage) (Payload, error) {
	var tag struct {
		Kind PayloadKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return decodeInto(tag.Kind, raw)
}

func decodeInto(kind PayloadKind, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.stamp(time.Now())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func invalid(kind PayloadKind, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, kind, reason)
}
