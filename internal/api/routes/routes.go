package routes

import (
	"time"

	"metrics-relay/internal/api/handlers"
	"metrics-relay/internal/api/middleware"
	"metrics-relay/internal/metrics"
	"metrics-relay/internal/repository"
	"metrics-relay/internal/services"
	"metrics-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the router wires into handlers.
// Users, RateLimiter and Presence may be nil.
type Dependencies struct {
	Hub            *websocket.Hub
	ClientOptions  websocket.ClientOptions
	AllowedOrigins []string
	Users          repository.UserRepository
	Content        services.ContentService
	RateLimiter    middleware.RateLimiter
	Presence       handlers.PresenceReader
}

type Router struct {
	engine          *gin.Engine
	wsHandler       *handlers.WSHandler
	healthHandler   *handlers.HealthHandler
	contentHandler  *handlers.ContentHandler
	relayHandler    *handlers.RelayHandler
	presenceHandler *handlers.PresenceHandler
	rateLimitMW     *middleware.RateLimitMiddleware
}

func NewRouter(deps Dependencies) *Router {
	engine := gin.New()

	// Add middlewares
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(deps.AllowedOrigins))
	engine.Use(middleware.LogApi())
	engine.Use(middleware.Metrics())

	upgrader := websocket.NewUpgrader(deps.AllowedOrigins)

	return &Router{
		engine:          engine,
		wsHandler:       handlers.NewWSHandler(deps.Hub, upgrader, deps.ClientOptions),
		healthHandler:   handlers.NewHealthHandler(deps.Users),
		contentHandler:  handlers.NewContentHandler(deps.Content),
		relayHandler:    handlers.NewRelayHandler(deps.Hub),
		presenceHandler: handlers.NewPresenceHandler(deps.Presence),
		rateLimitMW:     middleware.NewRateLimitMiddleware(deps.RateLimiter),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.engine.Group("/api")
	{
		api.GET("/health", r.healthHandler.Health)
		api.GET("/test", r.healthHandler.Test)
		api.GET("/db-test", r.healthHandler.DBTest)
		api.POST("/test-ai-content", r.contentHandler.TestContent)

		// Relay transport endpoint
		api.GET("/socketio", r.wsHandler.HandleWebSocket)

		ai := api.Group("/")
		ai.Use(r.rateLimitMW.RateLimitIP(30, time.Minute)) // 30 requests per minute per IP
		{
			ai.POST("/ai-content", r.contentHandler.GenerateContent)
			ai.POST("/predictive-analytics", r.contentHandler.PredictiveAnalytics)
		}
	}

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/ws", r.wsHandler.HandleWebSocket)

		relay := v1.Group("/relay")
		relay.GET("/stats", r.relayHandler.Stats)
		relay.POST("/events", r.relayHandler.Publish)

		v1.GET("/presence", r.presenceHandler.OnlineUsers)
		v1.GET("/presence/:userId", r.presenceHandler.UserStatus)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
