// Command backfill loads historical hourly readings into the readings
// database, either from the Open-Meteo archive or from a local CSV export.
// Service configuration (station coordinates, database path) comes from the
// same environment variables as the nowcast service.
//
// Usage:
//
//	go run ./cmd/backfill -from 2026-08-01 -to 2026-08-22
//	go run ./cmd/backfill -csv readings.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/adapter/openmeteo"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/store"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	from := flag.String("from", "", "start date (YYYY-MM-DD), default 14 days ago")
	to := flag.String("to", "", "end date (YYYY-MM-DD), default today")
	csvPath := flag.String("csv", "", "load readings from a CSV file instead of Open-Meteo")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	var readings []domain.Reading
	if *csvPath != "" {
		readings, err = loadCSV(*csvPath)
		if err != nil {
			return fmt.Errorf("load csv: %w", err)
		}
	} else {
		start, end, err := dateRange(*from, *to)
		if err != nil {
			return err
		}
		client := openmeteo.NewClient(cfg.StationLat, cfg.StationLon, cfg.OpenMeteoTimeout, metrics, logger)

		air, err := client.FetchAirQuality(ctx, start, end)
		if err != nil {
			return fmt.Errorf("fetch air quality: %w", err)
		}
		weather, err := client.FetchWeather(ctx, start, end)
		if err != nil {
			return fmt.Errorf("fetch weather: %w", err)
		}
		readings = append(air, weather...)
	}

	if len(readings) == 0 {
		return fmt.Errorf("no readings to load")
	}
	if err := st.UpsertReadings(ctx, readings); err != nil {
		return fmt.Errorf("store readings: %w", err)
	}

	total, err := st.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("backfill complete", "loaded", len(readings), "stored_hours", total, "db", cfg.DBPath)
	return nil
}

func dateRange(from, to string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -14)
	end := now

	var err error
	if from != "" {
		if start, err = time.Parse(dateLayout, from); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from date %q", from)
		}
	}
	if to != "" {
		if end, err = time.Parse(dateLayout, to); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to date %q", to)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to date precedes -from date")
	}
	return start, end, nil
}

// loadCSV reads readings from a CSV file whose header names match the reading
// JSON fields (timestamp, pm2_5, temperature_2m, ...). Empty cells become
// missing measurements.
func loadCSV(path string) ([]domain.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	if _, ok := colIdx["timestamp"]; !ok {
		return nil, fmt.Errorf("missing timestamp column")
	}

	readings := make([]domain.Reading, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ts, err := parseTimestamp(cell(row, colIdx, "timestamp"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		readings = append(readings, domain.Reading{
			Timestamp:     ts,
			PM25:          cellFloat(row, colIdx, "pm2_5"),
			PM10:          cellFloat(row, colIdx, "pm10"),
			CO:            cellFloat(row, colIdx, "carbon_monoxide"),
			NO2:           cellFloat(row, colIdx, "nitrogen_dioxide"),
			O3:            cellFloat(row, colIdx, "ozone"),
			SO2:           cellFloat(row, colIdx, "sulphur_dioxide"),
			Temperature:   cellFloat(row, colIdx, "temperature_2m"),
			Humidity:      cellFloat(row, colIdx, "relative_humidity_2m"),
			DewPoint:      cellFloat(row, colIdx, "dew_point_2m"),
			Precipitation: cellFloat(row, colIdx, "precipitation"),
			Pressure:      cellFloat(row, colIdx, "surface_pressure"),
			CloudCover:    cellFloat(row, colIdx, "cloud_cover"),
			WindSpeed:     cellFloat(row, colIdx, "wind_speed_10m"),
			WindDirection: cellFloat(row, colIdx, "wind_direction_10m"),
		})
	}
	return readings, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Truncate(time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellFloat(row []string, idx map[string]int, col string) float64 {
	s := cell(row, idx, col)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
