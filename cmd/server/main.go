package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"metrics-relay/internal/api/handlers"
	"metrics-relay/internal/api/middleware"
	"metrics-relay/internal/api/routes"
	"metrics-relay/internal/config"
	"metrics-relay/internal/database"
	"metrics-relay/internal/ingest"
	"metrics-relay/internal/metrics"
	"metrics-relay/internal/repository"
	"metrics-relay/internal/services"
	"metrics-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("Starting metrics relay")

	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional: presence, rate limiting and ingestion are skipped without it
	var (
		redisService   *services.RedisService
		rateLimiter    middleware.RateLimiter
		presence       websocket.Presence
		presenceReader handlers.PresenceReader
	)
	if cfg.Redis.URI != "" {
		redisClient, err := database.NewRedisConnection(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, continuing without it", "error", err)
		} else {
			defer redisClient.Close()
			redisService = services.NewRedisService(redisClient)
			rateLimiter = redisService
			presence = redisService
			presenceReader = redisService
		}
	}

	var users repository.UserRepository
	if dsn := cfg.Database.DSN(); dsn != "" {
		db, err := database.NewPostgresConnection(dsn)
		if err != nil {
			slog.Warn("PostgreSQL unavailable, /api/db-test will report errors", "error", err)
		} else {
			users = repository.NewUserRepository(db)
		}
	}

	// Initialize relay hub
	hub := websocket.NewHub(websocket.Options{
		TickInterval:     cfg.Relay.TickInterval,
		SyntheticMetrics: cfg.Relay.SyntheticData,
		RequireIdentity:  cfg.Relay.RequireIdentity,
	}, presence, nil, logger)
	go hub.Run()

	var ingestWG sync.WaitGroup
	runSource := func(name string, run func(context.Context) error) {
		ingestWG.Add(1)
		go func() {
			defer ingestWG.Done()
			if err := run(ctx); err != nil {
				slog.Error("Ingestion source failed", "source", name, "error", err)
			}
		}()
	}
	if redisService != nil {
		runSource("redis", ingest.NewRedisSource(redisService, hub, logger).Run)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		runSource("kafka", ingest.NewKafkaSource(cfg.Kafka, hub, logger).Run)
	}

	gin.SetMode(gin.ReleaseMode)
	router := routes.NewRouter(routes.Dependencies{
		Hub: hub,
		ClientOptions: websocket.ClientOptions{
			SendBuffer:     cfg.Relay.SendBuffer,
			MaxMessageSize: cfg.Relay.MaxMessageSize,
			InboundRate:    rate.Limit(cfg.Relay.InboundRate),
			InboundBurst:   cfg.Relay.InboundBurst,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Users:          users,
		Content:        services.NewContentService(cfg.AI),
		RateLimiter:    rateLimiter,
		Presence:       presenceReader,
	})
	router.SetupRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	slog.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop intake first, then the hub closes every session
	ingestWG.Wait()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	hub.Stop()

	slog.Info("Server stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
