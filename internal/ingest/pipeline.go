// Package ingest moves readings into the store, from the sensor topic
// (Pipeline) and from Open-Meteo (Poller).
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
)

// BatchExtractor reads up to batchSize raw sensor events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Loader persists parsed readings.
type Loader interface {
	UpsertReadings(ctx context.Context, readings []domain.Reading) error
}

// Pipeline orchestrates the extract-parse-store loop for sensor messages.
type Pipeline struct {
	extractor BatchExtractor
	loader    Loader
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
}

// NewPipeline creates a Pipeline with the given stages and observability.
func NewPipeline(e BatchExtractor, l Loader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Run executes the batch ingest loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("sensor pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("sensor pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-parse-store cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	readings := make([]domain.Reading, 0, len(rawBatch))
	parsedRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		reading, err := domain.ParseRawEvent(raw)
		if err != nil {
			p.logger.Warn("parse failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.IngestErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		readings = append(readings, reading)
		parsedRaws = append(parsedRaws, raw)
	}

	if len(readings) == 0 {
		return true
	}

	if err := p.loader.UpsertReadings(ctx, readings); err != nil {
		p.logger.Error("store batch failed", "error", err, "batch_size", len(readings))
		p.metrics.IngestErrors.Inc()
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.ReadingsIngested.Add(float64(len(readings)))

	for _, raw := range parsedRaws {
		p.commitOffset(ctx, raw)
	}
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
