package kafka

import (
	"context"
	"log/slog"
	"sort"

	"github.com/couchcryptid/order-geo-service/internal/config"
	"github.com/couchcryptid/order-geo-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes resolved addresses to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{}, // keep all results for an order on one partition
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes resolved addresses to the sink topic in
// a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.ResolvedAddress) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage encodes a ResolvedAddress as a Kafka message keyed by order ID.
// Headers are emitted in key order.
func serializeToMessage(r domain.ResolvedAddress) (kafkago.Message, error) {
	out, err := domain.SerializeResolvedAddress(r)
	if err != nil {
		return kafkago.Message{}, err
	}

	keys := make([]string, 0, len(out.Headers))
	for k := range out.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(out.Headers[k])})
	}
	return kafkago.Message{Key: out.Key, Value: out.Value, Headers: headers}, nil
}
