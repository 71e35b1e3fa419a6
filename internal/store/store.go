// Package store persists hourly readings in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed readings store. Readings are keyed by their UTC
// hour; re-ingesting a reading is idempotent.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		ts INTEGER PRIMARY KEY,
		pm2_5 REAL,
		pm10 REAL,
		carbon_monoxide REAL,
		nitrogen_dioxide REAL,
		ozone REAL,
		sulphur_dioxide REAL,
		temperature_2m REAL,
		relative_humidity_2m REAL,
		dew_point_2m REAL,
		precipitation REAL,
		surface_pressure REAL,
		cloud_cover REAL,
		wind_speed_10m REAL,
		wind_direction_10m REAL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const readingColumns = `pm2_5, pm10, carbon_monoxide, nitrogen_dioxide, ozone, sulphur_dioxide,
	temperature_2m, relative_humidity_2m, dew_point_2m, precipitation,
	surface_pressure, cloud_cover, wind_speed_10m, wind_direction_10m`

// UpsertReadings inserts or merges readings by hour. Columns already present
// are only overwritten by non-NULL incoming values, so partial air and
// weather rows for the same hour merge instead of clobbering each other.
func (s *Store) UpsertReadings(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (ts, `+readingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts) DO UPDATE SET
			pm2_5 = COALESCE(excluded.pm2_5, readings.pm2_5),
			pm10 = COALESCE(excluded.pm10, readings.pm10),
			carbon_monoxide = COALESCE(excluded.carbon_monoxide, readings.carbon_monoxide),
			nitrogen_dioxide = COALESCE(excluded.nitrogen_dioxide, readings.nitrogen_dioxide),
			ozone = COALESCE(excluded.ozone, readings.ozone),
			sulphur_dioxide = COALESCE(excluded.sulphur_dioxide, readings.sulphur_dioxide),
			temperature_2m = COALESCE(excluded.temperature_2m, readings.temperature_2m),
			relative_humidity_2m = COALESCE(excluded.relative_humidity_2m, readings.relative_humidity_2m),
			dew_point_2m = COALESCE(excluded.dew_point_2m, readings.dew_point_2m),
			precipitation = COALESCE(excluded.precipitation, readings.precipitation),
			surface_pressure = COALESCE(excluded.surface_pressure, readings.surface_pressure),
			cloud_cover = COALESCE(excluded.cloud_cover, readings.cloud_cover),
			wind_speed_10m = COALESCE(excluded.wind_speed_10m, readings.wind_speed_10m),
			wind_direction_10m = COALESCE(excluded.wind_direction_10m, readings.wind_direction_10m)
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		ts := r.Timestamp.UTC().Truncate(time.Hour).Unix()
		_, err := stmt.ExecContext(ctx, ts,
			toNull(r.PM25), toNull(r.PM10), toNull(r.CO), toNull(r.NO2), toNull(r.O3), toNull(r.SO2),
			toNull(r.Temperature), toNull(r.Humidity), toNull(r.DewPoint), toNull(r.Precipitation),
			toNull(r.Pressure), toNull(r.CloudCover), toNull(r.WindSpeed), toNull(r.WindDirection),
		)
		if err != nil {
			return fmt.Errorf("upsert reading %s: %w", r.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// ReadingsSince returns all readings at or after t, ordered by hour.
func (s *Store) ReadingsSince(ctx context.Context, t time.Time) ([]domain.Reading, error) {
	return s.query(ctx, `
		SELECT ts, `+readingColumns+`
		FROM readings WHERE ts >= ? ORDER BY ts`, t.UTC().Unix())
}

// ReadingsRange returns readings in [from, to), ordered by hour.
func (s *Store) ReadingsRange(ctx context.Context, from, to time.Time) ([]domain.Reading, error) {
	return s.query(ctx, `
		SELECT ts, `+readingColumns+`
		FROM readings WHERE ts >= ? AND ts < ? ORDER BY ts`, from.UTC().Unix(), to.UTC().Unix())
}

// Latest returns the most recent reading. The bool is false when the store
// is empty.
func (s *Store) Latest(ctx context.Context) (domain.Reading, bool, error) {
	readings, err := s.query(ctx, `
		SELECT ts, `+readingColumns+`
		FROM readings ORDER BY ts DESC LIMIT 1`)
	if err != nil {
		return domain.Reading{}, false, err
	}
	if len(readings) == 0 {
		return domain.Reading{}, false, nil
	}
	return readings[0], true, nil
}

// CheckReadiness returns nil once at least one reading has been persisted.
func (s *Store) CheckReadiness(ctx context.Context) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no readings ingested yet")
	}
	return nil
}

// Count returns the number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		var ts int64
		var cols [14]sql.NullFloat64
		dest := make([]any, 0, 15)
		dest = append(dest, &ts)
		for i := range cols {
			dest = append(dest, &cols[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}

		out = append(out, domain.Reading{
			Timestamp:     time.Unix(ts, 0).UTC(),
			PM25:          fromNull(cols[0]),
			PM10:          fromNull(cols[1]),
			CO:            fromNull(cols[2]),
			NO2:           fromNull(cols[3]),
			O3:            fromNull(cols[4]),
			SO2:           fromNull(cols[5]),
			Temperature:   fromNull(cols[6]),
			Humidity:      fromNull(cols[7]),
			DewPoint:      fromNull(cols[8]),
			Precipitation: fromNull(cols[9]),
			Pressure:      fromNull(cols[10]),
			CloudCover:    fromNull(cols[11]),
			WindSpeed:     fromNull(cols[12]),
			WindDirection: fromNull(cols[13]),
		})
	}
	return out, rows.Err()
}

// toNull maps NaN to SQL NULL.
func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// fromNull maps SQL NULL to NaN.
func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
