package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// AlertWriter publishes air-quality alerts to the alert topic.
type AlertWriter struct {
	writer  *kafkago.Writer
	station string
	logger  *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, station: cfg.StationName, logger: logger}
}

// PublishAlert serializes and publishes one alert, keyed by station name.
func (w *AlertWriter) PublishAlert(ctx context.Context, alert domain.Alert) error {
	msg, err := serializeAlert(w.station, alert)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	w.logger.Info("alert published", "level", alert.Level, "hours_ahead", alert.HoursAhead)
	return nil
}

// Close closes the underlying Kafka writer.
func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeAlert marshals an alert into a Kafka message.
func serializeAlert(station string, alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(alert.Level)},
			{Key: "issued_at", Value: []byte(alert.IssuedAt.Format(time.RFC3339))},
		},
	}, nil
}
