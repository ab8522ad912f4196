package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sipsa-price-etl/internal/config"
	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
)

// Writer publishes normalized records to a Kafka topic, one message per
// record. It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes every record of the batch and publishes them in a single
// WriteMessages call. It returns a kafka:// location naming the topic.
func (w *Writer) Load(ctx context.Context, b domain.Batch) (string, error) {
	location := "kafka://" + w.writer.Addr.String() + "/" + w.writer.Topic
	if len(b.Records) == 0 {
		return location, nil
	}
	msgs := make([]kafkago.Message, len(b.Records))
	for i, rec := range b.Records {
		msg, err := serializeToMessage(rec, b.Operation, b.GeneratedAt)
		if err != nil {
			return "", err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return "", fmt.Errorf("publish to %s: %w", w.writer.Topic, err)
	}
	w.logger.Info("records published", "topic", w.writer.Topic, "records", len(msgs))
	return location, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record into a Kafka message keyed by its ID,
// so repeated runs land the same record on the same partition.
func serializeToMessage(rec domain.Record, operation string, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", rec.Kind(), err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_kind", Value: []byte(rec.Kind())},
			{Key: "operation", Value: []byte(operation)},
			{Key: "generated_at", Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
