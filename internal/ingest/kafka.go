package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"metrics-relay/internal/config"
	"metrics-relay/internal/metrics"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource relays records from a Kafka topic, one payload per message.
type KafkaSource struct {
	reader messageReader
	pub    Publisher
	logger *slog.Logger

	// Read failures are retried with an exponential backoff between these bounds.
	minBackoff time.Duration
	maxBackoff time.Duration
}

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

func NewKafkaSource(cfg config.KafkaConfig, pub Publisher, logger *slog.Logger) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return newKafkaSource(reader, pub, logger.With("source", "kafka", "topic", cfg.Topic))
}

func newKafkaSource(reader messageReader, pub Publisher, logger *slog.Logger) *KafkaSource {
	return &KafkaSource{
		reader:     reader,
		pub:        pub,
		logger:     logger,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
}

// Run blocks until ctx is cancelled, the reader is closed or the hub stops.
// Other read errors are logged and retried.
func (s *KafkaSource) Run(ctx context.Context) error {
	defer s.reader.Close()
	s.logger.Info("Kafka ingestion started")

	backoff := s.minBackoff
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			metrics.IngestRecords.WithLabelValues("kafka", "read_error").Inc()
			s.logger.Warn("Kafka read failed, retrying", "error", err, "backoff", backoff)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, s.maxBackoff)
			continue
		}
		backoff = s.minBackoff
		if err := handleRecord(ctx, s.pub, "kafka", msg.Value, s.logger.With("partition", msg.Partition, "offset", msg.Offset)); err != nil {
			s.logger.Info("Kafka ingestion stopped", "reason", err)
			return nil
		}
	}
}
