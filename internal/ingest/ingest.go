// Package ingest feeds producer records from external pipelines into the
// relay hub.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"metrics-relay/internal/metrics"
	"metrics-relay/internal/websocket"
)

// Publisher is the part of the hub the ingestion sources need.
type Publisher interface {
	Publish(ctx context.Context, topic websocket.Topic, payload websocket.Payload) error
}

// handleRecord decodes one flat tagged payload and publishes it to its own
// topic. Malformed records are counted and dropped.
func handleRecord(ctx context.Context, pub Publisher, source string, data []byte, logger *slog.Logger) error {
	payload, err := websocket.DecodeTaggedPayload(data)
	if err != nil {
		metrics.IngestRecords.WithLabelValues(source, "malformed").Inc()
		logger.Debug("Dropping malformed record", "error", err, "size", len(data))
		return nil
	}

	if err := pub.Publish(ctx, "", payload); err != nil {
		if errors.Is(err, websocket.ErrHubStopped) || errors.Is(err, context.Canceled) {
			return err
		}
		metrics.IngestRecords.WithLabelValues(source, "rejected").Inc()
		logger.Warn("Relay rejected record", "kind", payload.Kind(), "error", err)
		return nil
	}

	metrics.IngestRecords.WithLabelValues(source, "published").Inc()
	return nil
}
