// Package openmeteo fetches hourly air-quality and weather readings from the
// Open-Meteo APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
)

var (
	airQualityVariables = []string{
		"pm2_5", "pm10", "carbon_monoxide", "nitrogen_dioxide", "ozone", "sulphur_dioxide",
	}
	weatherVariables = []string{
		"temperature_2m", "relative_humidity_2m", "dew_point_2m", "precipitation",
		"surface_pressure", "cloud_cover", "wind_speed_10m", "wind_direction_10m",
	}
)

// Client fetches hourly readings for a station from the Open-Meteo
// air-quality and weather-archive APIs.
type Client struct {
	httpClient *http.Client
	airBaseURL string
	wxBaseURL  string
	lat, lon   float64
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client for the given station coordinates.
func NewClient(lat, lon float64, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		airBaseURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		wxBaseURL:  "https://archive-api.open-meteo.com/v1/archive",
		lat:        lat,
		lon:        lon,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchAirQuality returns pollutant readings for [from, to] (whole days;
// Open-Meteo slices by date). Weather fields of the returned readings are NaN.
func (c *Client) FetchAirQuality(ctx context.Context, from, to time.Time) ([]domain.Reading, error) {
	hourly, err := c.fetch(ctx, c.airBaseURL, airQualityVariables, from, to, "air_quality")
	if err != nil {
		return nil, err
	}
	return hourly.readings(func(r *domain.Reading, rec map[string]float64) {
		r.PM25 = rec["pm2_5"]
		r.PM10 = rec["pm10"]
		r.CO = rec["carbon_monoxide"]
		r.NO2 = rec["nitrogen_dioxide"]
		r.O3 = rec["ozone"]
		r.SO2 = rec["sulphur_dioxide"]
	}), nil
}

// FetchWeather returns weather readings for [from, to]. Pollutant fields of
// the returned readings are NaN.
func (c *Client) FetchWeather(ctx context.Context, from, to time.Time) ([]domain.Reading, error) {
	hourly, err := c.fetch(ctx, c.wxBaseURL, weatherVariables, from, to, "weather")
	if err != nil {
		return nil, err
	}
	return hourly.readings(func(r *domain.Reading, rec map[string]float64) {
		r.Temperature = rec["temperature_2m"]
		r.Humidity = rec["relative_humidity_2m"]
		r.DewPoint = rec["dew_point_2m"]
		r.Precipitation = rec["precipitation"]
		r.Pressure = rec["surface_pressure"]
		r.CloudCover = rec["cloud_cover"]
		r.WindSpeed = rec["wind_speed_10m"]
		r.WindDirection = rec["wind_direction_10m"]
	}), nil
}

func (c *Client) fetch(ctx context.Context, baseURL string, variables []string, from, to time.Time, source string) (*hourlyBlock, error) {
	params := url.Values{
		"latitude":   {fmt.Sprintf("%.4f", c.lat)},
		"longitude":  {fmt.Sprintf("%.4f", c.lon)},
		"start_date": {from.UTC().Format("2006-01-02")},
		"end_date":   {to.UTC().Format("2006-01-02")},
		"hourly":     {strings.Join(variables, ",")},
		"timeformat": {"unixtime"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("%s fetch: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var om response
	if err := json.NewDecoder(resp.Body).Decode(&om); err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("decode %s response: %w", source, err)
	}

	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	c.logger.Debug("open-meteo fetch complete", "source", source, "hours", len(om.Hourly.Time))
	return &om.Hourly, nil
}

// Open-Meteo API response types. Value arrays may contain nulls for hours
// the provider has no data for.

type response struct {
	Hourly hourlyBlock `json:"hourly"`
}

type hourlyBlock struct {
	Time   []int64               `json:"time"`
	Values map[string][]*float64 `json:"-"`
}

// UnmarshalJSON captures the time array plus every variable array by name.
func (h *hourlyBlock) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	h.Values = make(map[string][]*float64, len(fields))
	for name, raw := range fields {
		if name == "time" {
			if err := json.Unmarshal(raw, &h.Time); err != nil {
				return fmt.Errorf("decode hourly time: %w", err)
			}
			continue
		}
		var vals []*float64
		if err := json.Unmarshal(raw, &vals); err != nil {
			return fmt.Errorf("decode hourly %s: %w", name, err)
		}
		h.Values[name] = vals
	}
	return nil
}

// readings converts the hourly block into one Reading per hour, using assign
// to place the variable map onto the reading's fields. Null values become NaN.
func (h *hourlyBlock) readings(assign func(*domain.Reading, map[string]float64)) []domain.Reading {
	out := make([]domain.Reading, 0, len(h.Time))
	for i, unix := range h.Time {
		rec := make(map[string]float64, len(h.Values))
		for name, vals := range h.Values {
			if i < len(vals) && vals[i] != nil {
				rec[name] = *vals[i]
			} else {
				rec[name] = math.NaN()
			}
		}

		r := domain.Reading{
			Timestamp:     time.Unix(unix, 0).UTC().Truncate(time.Hour),
			PM25:          math.NaN(),
			PM10:          math.NaN(),
			CO:            math.NaN(),
			NO2:           math.NaN(),
			O3:            math.NaN(),
			SO2:           math.NaN(),
			Temperature:   math.NaN(),
			Humidity:      math.NaN(),
			DewPoint:      math.NaN(),
			Precipitation: math.NaN(),
			Pressure:      math.NaN(),
			CloudCover:    math.NaN(),
			WindSpeed:     math.NaN(),
			WindDirection: math.NaN(),
		}
		assign(&r, rec)
		out = append(out, r)
	}
	return out
}
