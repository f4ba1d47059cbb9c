package handlers

import (
	"log/slog"
	"net/http"

	"metrics-relay/internal/services"

	"github.com/gin-gonic/gin"
)

// sampleContent is served by TestContent so the dashboard can exercise its
// content view without calling the model.
var sampleContent = services.GeneratedContent{
	Content: "🚀 Exciting news! We're thrilled to announce our latest innovation that's set to revolutionize the industry. " +
		"This breakthrough technology combines cutting-edge AI with user-centric design to deliver unprecedented value.\n\n" +
		"Join us on this incredible journey as we reshape the future! 🌟\n\n" +
		"What do you think about this development? Share your thoughts below! 👇",
	Hashtags:      []string{"#innovation", "#technology", "#future", "#AI", "#revolution"},
	Sentiment:     "positive",
	ViralityScore: 87,
	Platform:      "twitter",
}

type ContentHandler struct {
	content services.ContentService
}

func NewContentHandler(content services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// GenerateContent godoc
// @Summary Generate a social media post
// @Tags ai
// @Accept json
// @Produce json
// @Param request body services.ContentRequest true "Prompt and target platform"
// @Success 200 {object} services.GeneratedContent
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /ai-content [post]
func (h *ContentHandler) GenerateContent(c *gin.Context) {
	var req services.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" || req.Platform == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt and platform are required"})
		return
	}

	content, err := h.content.GenerateContent(c.Request.Context(), req)
	if err != nil {
		slog.Error("Error generating AI content", "platform", req.Platform, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate content"})
		return
	}

	c.JSON(http.StatusOK, content)
}

// PredictiveAnalytics godoc
// @Summary Generate predictive analytics
// @Tags ai
// @Produce json
// @Success 200 {object} services.PredictiveAnalytics
// @Failure 500 {object} map[string]interface{}
// @Router /predictive-analytics [post]
func (h *ContentHandler) PredictiveAnalytics(c *gin.Context) {
	analytics, err := h.content.PredictAnalytics(c.Request.Context())
	if err != nil {
		slog.Error("Error generating predictive analytics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate predictive analytics"})
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// TestContent godoc
// @Summary Return a canned generated post
// @Tags ai
// @Produce json
// @Success 200 {object} services.GeneratedContent
// @Router /test-ai-content [post]
func (h *ContentHandler) TestContent(c *gin.Context) {
	c.JSON(http.StatusOK, sampleContent)
}
