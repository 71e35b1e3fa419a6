//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/adapter/kafka"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/ingest"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/store"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-sensor-readings"
	testAlertTopic  = "test-alerts"
)

var baseHour = time.Date(2026, time.August, 20, 13, 0, 0, 0, time.UTC)

func sensorRecord(hour int, pm25 *float64) domain.RawSensorRecord {
	return domain.RawSensorRecord{
		Timestamp: baseHour.Add(time.Duration(hour) * time.Hour).Format(time.RFC3339),
		Station:   "HUST Station",
		PM25:      pm25,
		Temp:      ptr(31.5),
		Humidity:  ptr(68),
	}
}

// TestSensorReaderRoundTrip verifies the adapter layer: a sensor record
// published to the source topic comes back through kafka.Reader and parses
// into a reading.
func TestSensorReaderRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaGroupID:       fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	payload, err := json.Marshal(sensorRecord(0, ptr(62.4)))
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("hust"),
		Value: payload,
	}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("hust"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	reading, err := domain.ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, baseHour, reading.Timestamp)
	assert.Equal(t, 62.4, reading.PM25)
	assert.Equal(t, 31.5, reading.Temperature)
}

// TestSensorPipelineEndToEnd wires Reader -> Pipeline -> SQLite store with
// real Kafka and verifies readings land keyed by hour, with a poison pill
// skipped along the way.
func TestSensorPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaGroupID:       fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, 5)
	for hour := 0; hour < 3; hour++ {
		payload, err := json.Marshal(sensorRecord(hour, ptr(40.0+float64(hour)*10)))
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{Key: []byte("hust"), Value: payload})
	}
	// Poison pill and a record missing PM2.5; both must not stop the run.
	msgs = append(msgs, kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")})
	missingPayload, err := json.Marshal(sensorRecord(3, nil))
	require.NoError(t, err)
	msgs = append(msgs, kafkago.Message{Key: []byte("hust"), Value: missingPayload})

	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	st, err := store.Open(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	metrics := observability.NewMetricsForTesting()
	p := ingest.NewPipeline(reader, st, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Four parseable records should land (the poison pill is skipped).
	for {
		n, err := st.Count(ctx)
		require.NoError(t, err)
		if n >= 4 {
			break
		}
		if ctx.Err() != nil {
			t.Fatalf("timed out waiting for readings, have %d", n)
		}
		time.Sleep(250 * time.Millisecond)
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	readings, err := st.ReadingsSince(ctx, baseHour)
	require.NoError(t, err)
	require.Len(t, readings, 4)

	assert.Equal(t, baseHour, readings[0].Timestamp)
	assert.Equal(t, 40.0, readings[0].PM25)
	assert.Equal(t, 60.0, readings[2].PM25)
	assert.False(t, readings[3].HasPM25(), "missing PM2.5 should stay missing")
	assert.Equal(t, 31.5, readings[3].Temperature)
}

// TestAlertWriterPublish verifies alerts round-trip the alert topic with
// their headers intact.
func TestAlertWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaAlertTopic: testAlertTopic,
		StationName:     "HUST Station",
	}

	writer := kafka.NewAlertWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	alert := domain.Alert{
		Level:      domain.AlertUnhealthy,
		Message:    "Unhealthy air quality expected. Plan indoor activities.",
		HoursAhead: 2,
		PeakPM25:   112.5,
		Peak:       domain.PM25ToAQI(112.5),
		IssuedAt:   baseHour,
	}
	require.NoError(t, writer.PublishAlert(ctx, alert))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		GroupID:     fmt.Sprintf("test-alerts-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, []byte("HUST Station"), msg.Key)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "alert", headers["level"])
	assert.Equal(t, baseHour.Format(time.RFC3339), headers["issued_at"])

	var got domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, domain.AlertUnhealthy, got.Level)
	assert.Equal(t, 2, got.HoursAhead)
	assert.Equal(t, 112.5, got.PeakPM25)
}
