package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"metrics-relay/internal/models"
	"metrics-relay/internal/services"
	"metrics-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUserRepo struct {
	count     int64
	countErr  error
	created   []*models.User
	deleted   []uint
	deleteErr error
}

func (r *fakeUserRepo) Count(context.Context) (int64, error) { return r.count, r.countErr }

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	u.ID = uint(len(r.created) + 1)
	r.created = append(r.created, u)
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uint) error {
	r.deleted = append(r.deleted, id)
	return r.deleteErr
}

type fakeContent struct {
	content   *services.GeneratedContent
	analytics *services.PredictiveAnalytics
	err       error
	last      services.ContentRequest
}

func (f *fakeContent) GenerateContent(_ context.Context, req services.ContentRequest) (*services.GeneratedContent, error) {
	f.last = req
	return f.content, f.err
}

func (f *fakeContent) PredictAnalytics(context.Context) (*services.PredictiveAnalytics, error) {
	return f.analytics, f.err
}

func do(t *testing.T, engine *gin.Engine, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestHealthAndTest(t *testing.T) {
	h := NewHealthHandler(nil)
	engine := gin.New()
	engine.GET("/api/health", h.Health)
	engine.GET("/api/test", h.Test)

	code, body := do(t, engine, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	code, body = do(t, engine, http.MethodGet, "/api/test", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
}

func TestDBTestRoundTrip(t *testing.T) {
	repo := &fakeUserRepo{count: 4}
	engine := gin.New()
	engine.GET("/api/db-test", NewHealthHandler(repo).DBTest)

	code, body := do(t, engine, http.MethodGet, "/api/db-test", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, 4.0, body["userCount"])

	require.Len(t, repo.created, 1)
	assert.True(t, strings.HasPrefix(repo.created[0].Email, "test-"))
	assert.Equal(t, "USER", repo.created[0].Role)
	assert.Equal(t, []uint{1}, repo.deleted)
}

func TestDBTestFailures(t *testing.T) {
	tests := map[string]*HealthHandler{
		"no database":  NewHealthHandler(nil),
		"count fails":  NewHealthHandler(&fakeUserRepo{countErr: errors.New("connection refused")}),
		"delete fails": NewHealthHandler(&fakeUserRepo{deleteErr: errors.New("locked")}),
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/api/db-test", h.DBTest)

			code, body := do(t, engine, http.MethodGet, "/api/db-test", "")
			assert.Equal(t, http.StatusInternalServerError, code)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenerateContent(t *testing.T) {
	svc := &fakeContent{content: &services.GeneratedContent{Content: "hello", Platform: "tiktok", ViralityScore: 80}}
	engine := gin.New()
	engine.POST("/api/ai-content", NewContentHandler(svc).GenerateContent)

	code, body := do(t, engine, http.MethodPost, "/api/ai-content", `{"prompt":"launch","platform":"tiktok","tone":"fun"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello", body["content"])
	assert.Equal(t, "fun", svc.last.Tone)

	code, body = do(t, engine, http.MethodPost, "/api/ai-content", `{"prompt":"launch"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Prompt and platform are required", body["error"])

	svc.err = services.ErrNoContent
	code, body = do(t, engine, http.MethodPost, "/api/ai-content", `{"prompt":"launch","platform":"tiktok"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to generate content", body["error"])
}

func TestTestContentSkipsModel(t *testing.T) {
	svc := &fakeContent{err: services.ErrAINotConfigured}
	engine := gin.New()
	engine.POST("/api/test-ai-content", NewContentHandler(svc).TestContent)

	code, body := do(t, engine, http.MethodPost, "/api/test-ai-content", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "twitter", body["platform"])
	assert.Equal(t, "positive", body["sentiment"])
	assert.Equal(t, 87.0, body["viralityScore"])
	assert.Len(t, body["hashtags"], 5)
	assert.Contains(t, body["content"], "Exciting news")
	assert.Empty(t, svc.last.Prompt)
}

func TestPredictiveAnalytics(t *testing.T) {
	svc := &fakeContent{analytics: &services.PredictiveAnalytics{KeyInsights: []services.Insight{{Title: "Reels"}}}}
	engine := gin.New()
	engine.POST("/api/predictive-analytics", NewContentHandler(svc).PredictiveAnalytics)

	code, body := do(t, engine, http.MethodPost, "/api/predictive-analytics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["keyInsights"], 1)

	svc.err = services.ErrAINotConfigured
	code, body = do(t, engine, http.MethodPost, "/api/predictive-analytics", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to generate predictive analytics", body["error"])
}

func newRelayEngine(t *testing.T) (*gin.Engine, *websocket.Hub) {
	t.Helper()
	opts := websocket.DefaultOptions()
	opts.TickInterval = time.Hour
	hub := websocket.NewHub(opts, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewRelayHandler(hub)
	engine := gin.New()
	engine.GET("/api/v1/relay/stats", h.Stats)
	engine.POST("/api/v1/relay/events", h.Publish)
	return engine, hub
}

func TestRelayPublish(t *testing.T) {
	engine, _ := newRelayEngine(t)

	tests := []struct {
		name  string
		body  string
		code  int
		topic string
	}{
		{
			name:  "derived topic",
			body:  `{"payload":{"kind":"campaign","campaignId":"c1","status":"active"}}`,
			code:  http.StatusAccepted,
			topic: "campaign:c1",
		},
		{
			name:  "explicit topic",
			body:  `{"topic":"competitors","payload":{"kind":"competitor","competitorId":"acme","metric":"reach"}}`,
			code:  http.StatusAccepted,
			topic: "competitors",
		},
		{name: "user topic", body: `{"topic":"user:u1","payload":{"kind":"message","text":"hi"}}`, code: http.StatusBadRequest},
		{name: "unknown topic", body: `{"topic":"weather","payload":{"kind":"competitor","competitorId":"a","metric":"b"}}`, code: http.StatusBadRequest},
		{name: "invalid payload", body: `{"payload":{"kind":"analytics","platform":""}}`, code: http.StatusBadRequest},
		{name: "message without topic", body: `{"payload":{"kind":"message","text":"hi"}}`, code: http.StatusBadRequest},
		{name: "missing payload", body: `{}`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, engine, http.MethodPost, "/api/v1/relay/events", tt.body)
			assert.Equal(t, tt.code, code)
			if tt.topic != "" {
				assert.Equal(t, tt.topic, body["topic"])
			}
		})
	}
}

func TestRelayStats(t *testing.T) {
	engine, hub := newRelayEngine(t)

	code, body := do(t, engine, http.MethodGet, "/api/v1/relay/stats", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["connections"])

	hub.Stop()
	code, _ = do(t, engine, http.MethodGet, "/api/v1/relay/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, engine, http.MethodPost, "/api/v1/relay/events", `{"payload":{"kind":"campaign","campaignId":"c1"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRelayPublishRejectsBadJSON(t *testing.T) {
	engine, _ := newRelayEngine(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/relay/events", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
