package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"metrics-relay/internal/config"
	"metrics-relay/internal/metrics"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrAINotConfigured = errors.New("ai provider is not configured")
	ErrNoContent       = errors.New("no content generated")
)

const (
	contentMaxTokens   = 1000
	analyticsMaxTokens = 2000
	temperature        = 0.7
)

type ContentRequest struct {
	Prompt      string `json:"prompt"`
	Platform    string `json:"platform"`
	ContentType string `json:"contentType,omitempty"`
	Tone        string `json:"tone,omitempty"`
}

type GeneratedContent struct {
	Content       string   `json:"content"`
	Hashtags      []string `json:"hashtags"`
	Sentiment     string   `json:"sentiment"`
	ViralityScore float64  `json:"viralityScore"`
	Platform      string   `json:"platform"`
}

type EngagementPoint struct {
	Date      string  `json:"date"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

type PlatformPrediction struct {
	Platform  string  `json:"platform"`
	Current   float64 `json:"current"`
	Predicted float64 `json:"predicted"`
	Growth    float64 `json:"growth"`
}

type ContentRecommendation struct {
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PredictiveAnalytics struct {
	EngagementData         []EngagementPoint       `json:"engagementData"`
	PlatformPredictions    []PlatformPrediction    `json:"platformPredictions"`
	ContentRecommendations []ContentRecommendation `json:"contentRecommendations"`
	KeyInsights            []Insight               `json:"keyInsights"`
}

type ContentService interface {
	GenerateContent(ctx context.Context, req ContentRequest) (*GeneratedContent, error)
	PredictAnalytics(ctx context.Context) (*PredictiveAnalytics, error)
}

type contentService struct {
	client *openai.Client
	model  string
}

// NewContentService builds the service on an OpenAI-compatible endpoint. With
// no API key every call fails with ErrAINotConfigured.
func NewContentService(cfg config.AIConfig) ContentService {
	s := &contentService{model: cfg.Model}
	if s.model == "" {
		s.model = openai.GPT4
	}
	if cfg.APIKey == "" {
		return s
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	s.client = openai.NewClientWithConfig(clientCfg)
	return s
}

func (s *contentService) GenerateContent(ctx context.Context, req ContentRequest) (*GeneratedContent, error) {
	tone := orDefault(req.Tone, "professional")
	contentType := orDefault(req.ContentType, "general")

	system := fmt.Sprintf(`You are an expert social media content creator for %[1]s.
Generate engaging content based on the user's request.
The content should be optimized for %[1]s and have a %[2]s tone.
Content type: %[3]s.

Your response should be a JSON object with the following structure:
{
  "content": "The generated social media post",
  "hashtags": ["hashtag1", "hashtag2", "hashtag3"],
  "sentiment": "positive|neutral|negative",
  "viralityScore": 85,
  "platform": "%[1]s"
}

Make the content engaging, platform-appropriate, and include relevant hashtags.`, req.Platform, tone, contentType)

	user := fmt.Sprintf(`Generate social media content for %[1]s with the following requirements:
- Topic: %[2]s
- Tone: %[3]s
- Content Type: %[4]s

Create content that will perform well on %[1]s.`, req.Platform, req.Prompt, tone, contentType)

	reply, err := s.complete(ctx, "ai-content", system, user, contentMaxTokens)
	if err != nil {
		return nil, err
	}

	var content GeneratedContent
	if err := json.Unmarshal([]byte(reply), &content); err != nil {
		slog.Debug("AI reply is not JSON, using fallback structure", "error", err)
		return &GeneratedContent{
			Content:       reply,
			Hashtags:      []string{"#socialmedia", "#content", "#marketing"},
			Sentiment:     "positive",
			ViralityScore: 75,
			Platform:      req.Platform,
		}, nil
	}
	return &content, nil
}

func (s *contentService) PredictAnalytics(ctx context.Context) (*PredictiveAnalytics, error) {
	const system = `You are an expert social media data analyst.
Generate realistic predictive analytics data for a social media management platform.
Return your response as a JSON object with the following structure:
{
  "engagementData": [
    {"date": "Month", "actual": 1234, "predicted": 5678}
  ],
  "platformPredictions": [
    {"platform": "Platform Name", "current": 12345, "predicted": 67890, "growth": 12.3}
  ],
  "contentRecommendations": [
    {"type": "Content Type", "reason": "Reason for recommendation", "priority": "High/Medium/Low"}
  ],
  "keyInsights": [
    {"title": "Insight Title", "description": "Detailed description of the insight"}
  ]
}

Make the data realistic and useful for social media marketers.`

	const user = `Generate predictive analytics data for a company that manages social media accounts
across Facebook, Instagram, TikTok, YouTube, and Twitter. The company has been operating for 12 months
and has significant follower counts on each platform.`

	reply, err := s.complete(ctx, "predictive-analytics", system, user, analyticsMaxTokens)
	if err != nil {
		return nil, err
	}

	analytics := PredictiveAnalytics{
		EngagementData:         []EngagementPoint{},
		PlatformPredictions:    []PlatformPrediction{},
		ContentRecommendations: []ContentRecommendation{},
		KeyInsights:            []Insight{},
	}
	if err := json.Unmarshal([]byte(reply), &analytics); err != nil {
		slog.Debug("AI reply is not JSON, using empty analytics", "error", err)
		return &PredictiveAnalytics{
			EngagementData:         []EngagementPoint{},
			PlatformPredictions:    []PlatformPrediction{},
			ContentRecommendations: []ContentRecommendation{},
			KeyInsights:            []Insight{},
		}, nil
	}
	return &analytics, nil
}

func (s *contentService) complete(ctx context.Context, endpoint, system, user string, maxTokens int) (string, error) {
	if s.client == nil {
		metrics.AIRequests.WithLabelValues(endpoint, "unconfigured").Inc()
		return "", ErrAINotConfigured
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		metrics.AIRequests.WithLabelValues(endpoint, "error").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.AIRequests.WithLabelValues(endpoint, "empty").Inc()
		return "", ErrNoContent
	}

	metrics.AIRequests.WithLabelValues(endpoint, "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
