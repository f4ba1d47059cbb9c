package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"metrics-relay/internal/config"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI answers chat completions with reply and records the last request.
func fakeOpenAI(t *testing.T, reply string) (*httptest.Server, *openai.ChatCompletionRequest) {
	t.Helper()
	var last openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&last))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-test",
			Model: last.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func newTestContentService(url string) ContentService {
	return NewContentService(config.AIConfig{APIKey: "test-key", BaseURL: url, Model: "test-model"})
}

func TestGenerateContentParsesJSONReply(t *testing.T) {
	srv, last := fakeOpenAI(t, `{"content":"Launch day!","hashtags":["#launch"],"sentiment":"positive","viralityScore":91,"platform":"tiktok"}`)
	svc := newTestContentService(srv.URL)

	got, err := svc.GenerateContent(context.Background(), ContentRequest{Prompt: "product launch", Platform: "tiktok"})
	require.NoError(t, err)

	assert.Equal(t, "Launch day!", got.Content)
	assert.Equal(t, []string{"#launch"}, got.Hashtags)
	assert.Equal(t, 91.0, got.ViralityScore)

	assert.Equal(t, "test-model", last.Model)
	assert.Equal(t, 1000, last.MaxTokens)
	assert.InDelta(t, 0.7, last.Temperature, 0.0001)
	require.Len(t, last.Messages, 2)
	assert.Contains(t, last.Messages[0].Content, "content creator for tiktok")
	assert.Contains(t, last.Messages[0].Content, "professional tone")
	assert.Contains(t, last.Messages[1].Content, "Topic: product launch")
}

func TestGenerateContentFallsBackOnPlainText(t *testing.T) {
	srv, _ := fakeOpenAI(t, "Just a plain caption")
	svc := newTestContentService(srv.URL)

	got, err := svc.GenerateContent(context.Background(), ContentRequest{Prompt: "coffee", Platform: "instagram", Tone: "playful"})
	require.NoError(t, err)

	assert.Equal(t, &GeneratedContent{
		Content:       "Just a plain caption",
		Hashtags:      []string{"#socialmedia", "#content", "#marketing"},
		Sentiment:     "positive",
		ViralityScore: 75,
		Platform:      "instagram",
	}, got)
}

func TestGenerateContentEmptyReply(t *testing.T) {
	srv, _ := fakeOpenAI(t, "  ")
	svc := newTestContentService(srv.URL)

	_, err := svc.GenerateContent(context.Background(), ContentRequest{Prompt: "x", Platform: "youtube"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestContentServiceWithoutKey(t *testing.T) {
	svc := NewContentService(config.AIConfig{})

	_, err := svc.GenerateContent(context.Background(), ContentRequest{Prompt: "x", Platform: "youtube"})
	assert.ErrorIs(t, err, ErrAINotConfigured)
	_, err = svc.PredictAnalytics(context.Background())
	assert.ErrorIs(t, err, ErrAINotConfigured)
}

func TestPredictAnalytics(t *testing.T) {
	srv, last := fakeOpenAI(t, `{"engagementData":[{"date":"Jan","actual":100,"predicted":120}],"keyInsights":[{"title":"Reels","description":"Short video grows fastest"}]}`)
	svc := newTestContentService(srv.URL)

	got, err := svc.PredictAnalytics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2000, last.MaxTokens)
	require.Len(t, got.EngagementData, 1)
	assert.Equal(t, 120.0, got.EngagementData[0].Predicted)
	assert.Len(t, got.KeyInsights, 1)
	assert.NotNil(t, got.PlatformPredictions)
	assert.Empty(t, got.PlatformPredictions)
}

func TestPredictAnalyticsFallback(t *testing.T) {
	srv, _ := fakeOpenAI(t, "no data today")
	svc := newTestContentService(srv.URL)

	got, err := svc.PredictAnalytics(context.Background())
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"engagementData":[],"platformPredictions":[],"contentRecommendations":[],"keyInsights":[]}`, string(out))
}
