package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fetchFrom = time.Date(2026, time.August, 19, 0, 0, 0, 0, time.UTC)
	fetchTo   = time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(21.004, 105.843, 5*time.Second,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	c.airBaseURL = srv.URL
	c.wxBaseURL = srv.URL
	return c
}

func TestFetchAirQuality(t *testing.T) {
	base := time.Date(2026, time.August, 19, 10, 0, 0, 0, time.UTC).Unix()

	var gotQuery map[string][]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		payload := `{"hourly": {
			"time": [` + itoa(base) + `, ` + itoa(base+3600) + `, ` + itoa(base+7200) + `],
			"pm2_5": [42.1, null, 55.0],
			"pm10": [60.2, 61.0, null]
		}}`
		_, _ = w.Write([]byte(payload))
	})

	readings, err := c.FetchAirQuality(context.Background(), fetchFrom, fetchTo)
	require.NoError(t, err)
	require.Len(t, readings, 3)

	assert.Equal(t, []string{"21.0040"}, gotQuery["latitude"])
	assert.Equal(t, []string{"105.8430"}, gotQuery["longitude"])
	assert.Equal(t, []string{"2026-08-19"}, gotQuery["start_date"])
	assert.Equal(t, []string{"2026-08-20"}, gotQuery["end_date"])
	assert.Equal(t, []string{"unixtime"}, gotQuery["timeformat"])
	assert.Contains(t, gotQuery["hourly"][0], "pm2_5")
	assert.Contains(t, gotQuery["hourly"][0], "sulphur_dioxide")

	first := readings[0]
	assert.Equal(t, time.Unix(base, 0).UTC(), first.Timestamp)
	assert.Equal(t, 42.1, first.PM25)
	assert.Equal(t, 60.2, first.PM10)
	assert.True(t, math.IsNaN(first.Temperature), "air fetch leaves weather fields missing")

	assert.True(t, math.IsNaN(readings[1].PM25), "null becomes missing")
	assert.Equal(t, 61.0, readings[1].PM10)
	assert.True(t, math.IsNaN(readings[2].PM10))
}

func TestFetchWeather(t *testing.T) {
	base := time.Date(2026, time.August, 19, 0, 0, 0, 0, time.UTC).Unix()

	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		payload := `{"hourly": {
			"time": [` + itoa(base) + `],
			"temperature_2m": [31.5],
			"relative_humidity_2m": [68.0],
			"wind_speed_10m": [2.3]
		}}`
		_, _ = w.Write([]byte(payload))
	})

	readings, err := c.FetchWeather(context.Background(), fetchFrom, fetchTo)
	require.NoError(t, err)
	require.Len(t, readings, 1)

	got := readings[0]
	assert.Equal(t, 31.5, got.Temperature)
	assert.Equal(t, 68.0, got.Humidity)
	assert.Equal(t, 2.3, got.WindSpeed)
	assert.True(t, math.IsNaN(got.DewPoint), "variables absent from the payload stay missing")
	assert.True(t, math.IsNaN(got.PM25), "weather fetch leaves pollutant fields missing")
}

func TestFetch_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"reason": "invalid coordinates"}`, http.StatusBadRequest)
	})

	_, err := c.FetchAirQuality(context.Background(), fetchFrom, fetchTo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestFetch_MalformedResponse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hourly": {"time": "not-an-array"}}`))
	})

	_, err := c.FetchWeather(context.Background(), fetchFrom, fetchTo)
	require.Error(t, err)
}

func TestFetch_EmptyHours(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hourly": {"time": [], "pm2_5": []}}`))
	})

	readings, err := c.FetchAirQuality(context.Background(), fetchFrom, fetchTo)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
