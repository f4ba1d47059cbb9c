package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"metrics-relay/internal/config"
	"metrics-relay/internal/database"
	"metrics-relay/internal/models"
	"metrics-relay/internal/repository"
	"metrics-relay/internal/services"
	"metrics-relay/internal/websocket"
)

// seed creates demo accounts and pushes one round of sample events through
// the Redis ingestion channel so a running relay has something to show.
func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if dsn := cfg.Database.DSN(); dsn != "" {
		seedUsers(ctx, dsn)
	} else {
		slog.Info("POSTGRES_HOST not set, skipping user seeding")
	}

	if cfg.Redis.URI != "" {
		seedEvents(ctx, cfg.Redis)
	} else {
		slog.Info("REDIS_URL not set, skipping event seeding")
	}

	slog.Info("Seeding completed")
}

func seedUsers(ctx context.Context, dsn string) {
	db, err := database.NewPostgresConnection(dsn)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	users := repository.NewUserRepository(db)

	slog.Info("Creating initial users...")
	for _, u := range []models.User{
		{Email: "admin@socialempire.dev", Name: "Admin", Role: "ADMIN"},
		{Email: "analyst@socialempire.dev", Name: "Analyst", Role: "USER"},
		{Email: "manager@socialempire.dev", Name: "Campaign Manager", Role: "USER"},
	} {
		user := u
		if err := users.Create(ctx, &user); err != nil {
			slog.Warn("User might already exist", "email", user.Email, "error", err)
			continue
		}
		slog.Info("Created user", "id", user.ID, "email", user.Email)
	}
}

func seedEvents(ctx context.Context, cfg config.RedisConfig) {
	client, err := database.NewRedisConnection(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()
	redisService := services.NewRedisService(client)

	gen := websocket.NewMetricGenerator(nil, websocket.Platforms)
	payloads := []websocket.Payload{
		&websocket.CampaignUpdate{CampaignID: "spring-launch", Status: "active", Spent: 1250, Performance: 0.82},
		&websocket.CompetitorUpdate{CompetitorID: "acme", Metric: "followers", Value: 48200, Change: 2.4},
	}
	for range websocket.Platforms {
		payloads = append(payloads, gen.Next(time.Now()))
	}

	for _, p := range payloads {
		if err := redisService.PublishEvent(ctx, string(p.Kind()), p); err != nil {
			slog.Error("Failed to publish sample event", "kind", p.Kind(), "error", err)
			continue
		}
		slog.Info("Published sample event", "kind", p.Kind(), "topic", p.Topic())
	}
}
