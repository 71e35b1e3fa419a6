package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/jonboulle/clockwork"
)

// lookback is how far behind now each poll re-fetches. Re-fetching a window
// lets late provider revisions overwrite earlier provisional values.
const lookback = 48 * time.Hour

// Fetcher fetches hourly readings from the upstream provider.
type Fetcher interface {
	FetchAirQuality(ctx context.Context, from, to time.Time) ([]domain.Reading, error)
	FetchWeather(ctx context.Context, from, to time.Time) ([]domain.Reading, error)
}

// Poller periodically fetches the recent reading window from Open-Meteo,
// stores it, and invokes the refresh hook (nowcast regeneration and alert
// publishing).
type Poller struct {
	fetcher   Fetcher
	loader    Loader
	interval  time.Duration
	onRefresh func(ctx context.Context)
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewPoller creates a Poller. onRefresh may be nil.
func NewPoller(fetcher Fetcher, loader Loader, interval time.Duration, onRefresh func(ctx context.Context), clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		fetcher:   fetcher,
		loader:    loader,
		interval:  interval,
		onRefresh: onRefresh,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run polls immediately and then on every interval tick until the context is
// cancelled. Fetch failures are logged and retried at the next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval)

	p.pollOnce(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.pollOnce(ctx)
		}
	}
}

// pollOnce fetches and stores the recent window, then fires the refresh hook.
func (p *Poller) pollOnce(ctx context.Context) {
	now := p.clock.Now().UTC()
	from := now.Add(-lookback)

	stored := 0
	air, err := p.fetcher.FetchAirQuality(ctx, from, now)
	if err != nil {
		p.logger.Error("air quality fetch failed", "error", err)
		p.metrics.IngestErrors.Inc()
	} else if err := p.loader.UpsertReadings(ctx, air); err != nil {
		p.logger.Error("store air readings failed", "error", err)
		p.metrics.IngestErrors.Inc()
	} else {
		stored += len(air)
	}

	weather, err := p.fetcher.FetchWeather(ctx, from, now)
	if err != nil {
		p.logger.Error("weather fetch failed", "error", err)
		p.metrics.IngestErrors.Inc()
	} else if err := p.loader.UpsertReadings(ctx, weather); err != nil {
		p.logger.Error("store weather readings failed", "error", err)
		p.metrics.IngestErrors.Inc()
	} else {
		stored += len(weather)
	}

	if stored == 0 {
		return
	}

	p.metrics.ReadingsIngested.Add(float64(stored))
	p.logger.Info("poll complete", "readings", stored, "from", from, "to", now)

	if p.onRefresh != nil {
		p.onRefresh(ctx)
	}
}
