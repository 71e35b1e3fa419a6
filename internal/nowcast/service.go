// Package nowcast orchestrates forecasting: it loads the training window from
// the store, fits the requested model, classifies each forecast hour on the
// Vietnamese AQI scale, and derives alerts and health advisories.
package nowcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/forecast"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxHorizon is the longest supported forecast horizon in hours.
const MaxHorizon = 6

// maxHistoryHours caps the readings window served to clients (one week).
const maxHistoryHours = 168

// ErrNoData is returned when the store has no readings inside the training
// window.
var ErrNoData = errors.New("no readings available in training window")

// Store is the readings source the service forecasts from.
type Store interface {
	ReadingsSince(ctx context.Context, t time.Time) ([]domain.Reading, error)
	Latest(ctx context.Context) (domain.Reading, bool, error)
}

// AlertPublisher publishes derived alerts downstream.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert domain.Alert) error
}

// Point is one forecast hour with its prediction interval and AQI
// classification.
type Point struct {
	Timestamp time.Time      `json:"timestamp"`
	PM25      float64        `json:"pm2_5"`
	Lower     float64        `json:"lower"`
	Upper     float64        `json:"upper"`
	AQI       domain.AQIInfo `json:"aqi"`
}

// Result is a complete nowcast response for the station.
type Result struct {
	Station     string    `json:"station"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Model       string    `json:"model"`
	Horizon     int       `json:"horizon_hours"`
	GeneratedAt time.Time `json:"generated_at"`

	Current    *domain.Reading       `json:"current,omitempty"`
	CurrentAQI domain.AQIInfo        `json:"current_aqi"`
	Advisory   domain.HealthAdvisory `json:"advisory"`

	Forecast []Point      `json:"forecast"`
	Alert    domain.Alert `json:"alert"`
}

// Service produces nowcasts on demand, caching results per (model, horizon).
type Service struct {
	store     Store
	publisher AlertPublisher

	station      string
	lat, lon     float64
	defaultModel string
	trainWindow  time.Duration

	cache   *resultCache
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates a nowcast service. publisher may be nil when alert
// publishing is disabled.
func NewService(store Store, publisher AlertPublisher, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:        store,
		publisher:    publisher,
		station:      cfg.StationName,
		lat:          cfg.StationLat,
		lon:          cfg.StationLon,
		defaultModel: cfg.DefaultModel,
		trainWindow:  cfg.TrainWindow,
		cache:        newResultCache(cfg.CacheTTL, clock),
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
	}
}

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string {
	return s.defaultModel
}

// Nowcast fits the named model on the training window and forecasts the next
// hours. An empty model name selects the default; hours are clamped to
// [1, MaxHorizon]. Cached results are served until they expire.
func (s *Service) Nowcast(ctx context.Context, model string, hours int) (*Result, error) {
	if model == "" {
		model = s.defaultModel
	}
	if hours < 1 {
		hours = 1
	}
	if hours > MaxHorizon {
		hours = MaxHorizon
	}

	s.metrics.ForecastRequests.WithLabelValues(model).Inc()

	key := fmt.Sprintf("%s|%d", model, hours)
	if cached, ok := s.cache.get(key); ok {
		s.metrics.ForecastCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	s.metrics.ForecastCache.WithLabelValues("miss").Inc()

	result, err := s.compute(ctx, model, hours)
	if err != nil {
		s.metrics.ForecastErrors.WithLabelValues(model).Inc()
		return nil, err
	}

	s.cache.put(key, result)
	return result, nil
}

// Refresh invalidates cached results and regenerates the default nowcast,
// publishing its alert when one is active. Called after new readings arrive.
func (s *Service) Refresh(ctx context.Context) {
	s.cache.invalidate()

	result, err := s.Nowcast(ctx, s.defaultModel, MaxHorizon)
	if err != nil {
		s.logger.Warn("nowcast refresh failed", "model", s.defaultModel, "error", err)
		return
	}

	if result.Alert.Level == domain.AlertNone || s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAlert(ctx, result.Alert); err != nil {
		s.logger.Error("alert publish failed", "level", result.Alert.Level, "error", err)
		return
	}
	s.metrics.AlertsPublished.WithLabelValues(string(result.Alert.Level)).Inc()
}

// History returns stored readings for the trailing window, for charts and the
// readings API. Hours are clamped to [1, 168].
func (s *Service) History(ctx context.Context, hours int) ([]domain.Reading, error) {
	if hours < 1 {
		hours = 1
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}
	return s.store.ReadingsSince(ctx, s.clock.Now().UTC().Add(-time.Duration(hours)*time.Hour))
}

func (s *Service) compute(ctx context.Context, model string, hours int) (*Result, error) {
	m, err := forecast.New(model)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	readings, err := s.store.ReadingsSince(ctx, now.Add(-s.trainWindow))
	if err != nil {
		return nil, fmt.Errorf("load training window: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	pm25, exog := TrainingSeries(readings)

	timer := prometheus.NewTimer(s.metrics.ForecastDuration.WithLabelValues(model))
	err = m.Fit(pm25, exog...)
	if err == nil {
		var fc forecast.Forecast
		fc, err = m.Forecast(hours)
		timer.ObserveDuration()
		if err == nil {
			return s.assemble(ctx, model, hours, now, readings, fc)
		}
	} else {
		timer.ObserveDuration()
	}
	return nil, fmt.Errorf("model %s: %w", model, err)
}

// assemble maps the raw forecast into the API result: AQI per hour, the
// derived alert, and the current-conditions advisory.
func (s *Service) assemble(ctx context.Context, model string, hours int, now time.Time, readings []domain.Reading, fc forecast.Forecast) (*Result, error) {
	points := make([]Point, len(fc.Mean))
	means := make([]float64, len(fc.Mean))
	for i := range fc.Mean {
		// Concentrations cannot be negative; floor the point forecast and
		// interval at zero.
		mean := math.Max(fc.Mean[i], 0)
		lower := math.Max(fc.Lower[i], 0)
		upper := math.Max(fc.Upper[i], mean)

		means[i] = mean
		points[i] = Point{
			Timestamp: fc.Timestamps[i],
			PM25:      math.Round(mean*100) / 100,
			Lower:     math.Round(lower*100) / 100,
			Upper:     math.Round(upper*100) / 100,
			AQI:       domain.PM25ToAQI(mean),
		}
	}

	result := &Result{
		Station:     s.station,
		Latitude:    s.lat,
		Longitude:   s.lon,
		Model:       model,
		Horizon:     hours,
		GeneratedAt: now,
		Forecast:    points,
		Alert:       domain.DeriveAlert(means),
	}

	current, ok, err := s.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest reading: %w", err)
	}
	if ok {
		result.Current = &current
		result.CurrentAQI = domain.PM25ToAQI(current.PM25)
	} else {
		result.CurrentAQI = domain.PM25ToAQI(lastObserved(readings))
	}
	result.Advisory = domain.AdvisoryFor(result.CurrentAQI.Category)

	return result, nil
}

// TrainingSeries builds the PM2.5 series and its exogenous weather regressors
// (temperature, humidity, wind speed) from stored readings. Interior gaps are
// interpolated; edge gaps are trimmed from the endogenous series and the
// regressors are aligned onto its index. The evaluation command shares this so
// backtests fit on the same inputs the service does.
func TrainingSeries(readings []domain.Reading) (*timeseries.Series, []*timeseries.Series) {
	n := len(readings)
	timestamps := make([]time.Time, n)
	pm25 := make([]float64, n)
	temp := make([]float64, n)
	humidity := make([]float64, n)
	wind := make([]float64, n)
	for i, r := range readings {
		timestamps[i] = r.Timestamp
		pm25[i] = r.PM25
		temp[i] = r.Temperature
		humidity[i] = r.Humidity
		wind[i] = r.WindSpeed
	}

	endog := (&timeseries.Series{Timestamps: timestamps, Values: pm25, Name: "pm2_5"}).
		Interpolate().TrimNaN()

	raw := []*timeseries.Series{
		{Timestamps: timestamps, Values: temp, Name: "temperature_2m"},
		{Timestamps: timestamps, Values: humidity, Name: "relative_humidity_2m"},
		{Timestamps: timestamps, Values: wind, Name: "wind_speed_10m"},
	}

	aligned, err := timeseries.Align(append([]*timeseries.Series{endog}, raw...)...)
	if err != nil {
		return endog, nil
	}

	exog := make([]*timeseries.Series, 0, len(raw))
	for _, s := range aligned[1:] {
		exog = append(exog, fillMean(s.Interpolate()))
	}
	return endog, exog
}

// fillMean replaces remaining NaN observations with the series mean, so
// regressors with ragged edges still align with the endogenous index.
func fillMean(s *timeseries.Series) *timeseries.Series {
	if !s.HasNaN() {
		return s
	}
	mean := s.Mean()
	out := s.Copy()
	for i, v := range out.Values {
		if math.IsNaN(v) {
			out.Values[i] = mean
		}
	}
	return out
}

// lastObserved returns the most recent non-NaN PM2.5 value, or NaN when none
// exists.
func lastObserved(readings []domain.Reading) float64 {
	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].HasPM25() {
			return readings[i].PM25
		}
	}
	return math.NaN()
}
