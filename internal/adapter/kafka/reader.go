// Package kafka adapts the sensor source topic and the alert sink topic.
package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes raw sensor messages from the source topic as part of a
// consumer group. It implements ingest.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaSourceTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  cfg.BatchFlushInterval,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch fetches up to batchSize messages. The first fetch blocks until
// a message arrives or the context is cancelled; subsequent fetches drain
// whatever is immediately available within the reader's max wait.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	events := make([]domain.RawEvent, 0, batchSize)

	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	events = append(events, r.mapMessage(msg))

	for len(events) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, r.reader.Config().MaxWait)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if ctx.Err() != nil {
				// Shutdown mid-batch; return what we have.
				break
			}
			return events, err
		}
		events = append(events, r.mapMessage(msg))
	}

	return events, nil
}

// Close closes the underlying Kafka reader.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessage(msg kafkago.Message) domain.RawEvent {
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

// mapMessageToRawEvent converts a Kafka message into a domain RawEvent
// without a commit callback.
func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
