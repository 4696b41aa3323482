package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/config"
	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/store"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces unified records to a Kafka topic.
// It implements pipeline.SnapshotLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadSnapshot publishes every record of snap in a single WriteMessages call.
// Records are keyed by ID so re-published snapshots land on the same partition.
func (w *Writer) LoadSnapshot(ctx context.Context, snap *store.Snapshot) error {
	if len(snap.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Records))
	for i := range snap.Records {
		msg, err := serializeToMessage(snap, snap.Records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}
	w.logger.Debug("snapshot published to kafka", "snapshot_id", snap.ID, "records", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Record into a Kafka message.
func serializeToMessage(snap *store.Snapshot, rec domain.Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %s: %w", rec.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(rec.Kind)},
			{Key: "source", Value: []byte(rec.Source)},
			{Key: "snapshot_id", Value: []byte(snap.ID.String())},
			{Key: "refreshed_at", Value: []byte(snap.RefreshedAt.Format(time.RFC3339))},
		},
	}, nil
}
