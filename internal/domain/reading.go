package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Reading is one merged hourly observation of pollutants and weather at the
// station. Missing measurements are NaN in memory and null on the wire; see
// MarshalJSON.
type Reading struct {
	Timestamp time.Time

	// Pollutant concentrations in µg/m³.
	PM25 float64
	PM10 float64
	CO   float64
	NO2  float64
	O3   float64
	SO2  float64

	// Weather observations.
	Temperature   float64 // °C
	Humidity      float64 // %
	DewPoint      float64 // °C
	Precipitation float64 // mm
	Pressure      float64 // hPa
	CloudCover    float64 // %
	WindSpeed     float64 // m/s
	WindDirection float64 // degrees
}

// readingJSON is the wire form of a Reading. Pointer fields carry null for
// missing measurements, which encoding/json cannot express as NaN.
type readingJSON struct {
	Timestamp     time.Time `json:"timestamp"`
	PM25          *float64  `json:"pm2_5"`
	PM10          *float64  `json:"pm10"`
	CO            *float64  `json:"carbon_monoxide"`
	NO2           *float64  `json:"nitrogen_dioxide"`
	O3            *float64  `json:"ozone"`
	SO2           *float64  `json:"sulphur_dioxide"`
	Temperature   *float64  `json:"temperature_2m"`
	Humidity      *float64  `json:"relative_humidity_2m"`
	DewPoint      *float64  `json:"dew_point_2m"`
	Precipitation *float64  `json:"precipitation"`
	Pressure      *float64  `json:"surface_pressure"`
	CloudCover    *float64  `json:"cloud_cover"`
	WindSpeed     *float64  `json:"wind_speed_10m"`
	WindDirection *float64  `json:"wind_direction_10m"`
}

// MarshalJSON encodes missing measurements as null, mirroring the NULL
// mapping the store uses.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		Timestamp:     r.Timestamp,
		PM25:          nullable(r.PM25),
		PM10:          nullable(r.PM10),
		CO:            nullable(r.CO),
		NO2:           nullable(r.NO2),
		O3:            nullable(r.O3),
		SO2:           nullable(r.SO2),
		Temperature:   nullable(r.Temperature),
		Humidity:      nullable(r.Humidity),
		DewPoint:      nullable(r.DewPoint),
		Precipitation: nullable(r.Precipitation),
		Pressure:      nullable(r.Pressure),
		CloudCover:    nullable(r.CloudCover),
		WindSpeed:     nullable(r.WindSpeed),
		WindDirection: nullable(r.WindDirection),
	})
}

// UnmarshalJSON decodes the wire form, restoring null measurements to NaN.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var rec readingJSON
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*r = Reading{
		Timestamp:     rec.Timestamp,
		PM25:          measurement(rec.PM25),
		PM10:          measurement(rec.PM10),
		CO:            measurement(rec.CO),
		NO2:           measurement(rec.NO2),
		O3:            measurement(rec.O3),
		SO2:           measurement(rec.SO2),
		Temperature:   measurement(rec.Temperature),
		Humidity:      measurement(rec.Humidity),
		DewPoint:      measurement(rec.DewPoint),
		Precipitation: measurement(rec.Precipitation),
		Pressure:      measurement(rec.Pressure),
		CloudCover:    measurement(rec.CloudCover),
		WindSpeed:     measurement(rec.WindSpeed),
		WindDirection: measurement(rec.WindDirection),
	}
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// RawSensorRecord is the flat JSON structure published by on-site sensor
// collectors. Pointer fields distinguish missing measurements from zeroes.
type RawSensorRecord struct {
	Timestamp string   `json:"timestamp"` // RFC 3339
	Station   string   `json:"station,omitempty"`
	PM25      *float64 `json:"pm2_5"`
	PM10      *float64 `json:"pm10"`
	CO        *float64 `json:"carbon_monoxide"`
	NO2       *float64 `json:"nitrogen_dioxide"`
	O3        *float64 `json:"ozone"`
	SO2       *float64 `json:"sulphur_dioxide"`
	Temp      *float64 `json:"temperature_2m"`
	Humidity  *float64 `json:"relative_humidity_2m"`
	DewPoint  *float64 `json:"dew_point_2m"`
	Precip    *float64 `json:"precipitation"`
	Pressure  *float64 `json:"surface_pressure"`
	Cloud     *float64 `json:"cloud_cover"`
	WindSpeed *float64 `json:"wind_speed_10m"`
	WindDir   *float64 `json:"wind_direction_10m"`
}

// RawEvent represents an unprocessed message from the sensor topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseRawEvent deserializes a RawEvent's value into a Reading. The record
// timestamp is required and truncated to its UTC hour. Absent or negative
// concentrations become NaN.
func ParseRawEvent(raw RawEvent) (Reading, error) {
	var rec RawSensorRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Reading{}, fmt.Errorf("parse raw event: %w", err)
	}

	if rec.Timestamp == "" {
		return Reading{}, fmt.Errorf("parse raw event: missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return Reading{}, fmt.Errorf("parse raw event timestamp: %w", err)
	}

	return Reading{
		Timestamp:     ts.UTC().Truncate(time.Hour),
		PM25:          concentration(rec.PM25),
		PM10:          concentration(rec.PM10),
		CO:            concentration(rec.CO),
		NO2:           concentration(rec.NO2),
		O3:            concentration(rec.O3),
		SO2:           concentration(rec.SO2),
		Temperature:   measurement(rec.Temp),
		Humidity:      concentration(rec.Humidity),
		DewPoint:      measurement(rec.DewPoint),
		Precipitation: concentration(rec.Precip),
		Pressure:      concentration(rec.Pressure),
		CloudCover:    concentration(rec.Cloud),
		WindSpeed:     concentration(rec.WindSpeed),
		WindDirection: concentration(rec.WindDir),
	}, nil
}

// concentration unwraps a non-negative measurement. Absent or negative
// values become NaN.
func concentration(v *float64) float64 {
	if v == nil || *v < 0 {
		return math.NaN()
	}
	return *v
}

// measurement unwraps a measurement that may legitimately be negative
// (temperatures). Absent values become NaN.
func measurement(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// HasPM25 reports whether the reading carries a PM2.5 measurement.
func (r Reading) HasPM25() bool {
	return !math.IsNaN(r.PM25)
}
