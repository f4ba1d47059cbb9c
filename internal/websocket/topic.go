package websocket

import (
	"fmt"
	"strings"
)

// Topic is a named broadcast channel. Topics hold no state of their own; a topic
// exists only while at least one connection is subscribed to it.
type Topic string

const (
	platformPrefix = "platform:"
	campaignPrefix = "campaign:"
	userPrefix     = "user:"

	// TopicCompetitors is the singleton competitor-intelligence topic.
	TopicCompetitors Topic = "competitors"
)

// Platforms the synthetic generator and the initial-data snapshot advertise.
var Platforms = []string{"facebook", "instagram", "tiktok", "youtube"}

func PlatformTopic(platform string) Topic {
	return Topic(platformPrefix + strings.ToLower(strings.TrimSpace(platform)))
}

func CampaignTopic(campaignID string) Topic {
	return Topic(campaignPrefix + strings.TrimSpace(campaignID))
}

// UserTopic is the per-user delivery topic joined implicitly on registration.
func UserTopic(userID string) Topic {
	return Topic(userPrefix + userID)
}

func (t Topic) String() string {
	return string(t)
}

// IsUser reports whether t is an implicit per-user topic. Clients cannot
// subscribe to or unsubscribe from these directly.
func (t Topic) IsUser() bool {
	return strings.HasPrefix(string(t), userPrefix)
}

// Validate checks that t belongs to the platform, campaign or competitors
// namespace and carries a non-empty name.
func (t Topic) Validate() error {
	s := string(t)
	switch {
	case t == TopicCompetitors:
		return nil
	case strings.HasPrefix(s, platformPrefix):
		if len(s) == len(platformPrefix) {
			return fmt.Errorf("%w: empty platform name", ErrInvalidTopic)
		}
		return nil
	case strings.HasPrefix(s, campaignPrefix):
		if len(s) == len(campaignPrefix) {
			return fmt.Errorf("%w: empty campaign id", ErrInvalidTopic)
		}
		return nil
	case strings.HasPrefix(s, userPrefix):
		if len(s) == len(userPrefix) {
			return fmt.Errorf("%w: empty user id", ErrInvalidTopic)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}
}

// ParseTopic parses and validates a topic name received from a producer.
func ParseTopic(s string) (Topic, error) {
	t := Topic(strings.TrimSpace(s))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}
