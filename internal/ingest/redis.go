package ingest

import (
	"context"
	"log/slog"

	"metrics-relay/internal/services"
)

// RedisSource relays every message published on relay:events:*.
type RedisSource struct {
	redis  *services.RedisService
	pub    Publisher
	logger *slog.Logger
}

func NewRedisSource(redis *services.RedisService, pub Publisher, logger *slog.Logger) *RedisSource {
	return &RedisSource{redis: redis, pub: pub, logger: logger.With("source", "redis")}
}

// Run blocks until ctx is cancelled or the hub stops.
func (s *RedisSource) Run(ctx context.Context) error {
	pubsub := s.redis.PSubscribe(ctx, services.EventsPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	s.logger.Info("Redis ingestion started", "pattern", services.EventsPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handleRecord(ctx, s.pub, "redis", []byte(msg.Payload), s.logger.With("channel", msg.Channel)); err != nil {
				s.logger.Info("Redis ingestion stopped", "reason", err)
				return nil
			}
		}
	}
}
