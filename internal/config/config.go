package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DBPath string

	// Station identity (defaults to the HUST station in Hanoi).
	StationName string
	StationLat  float64
	StationLon  float64

	// Ingest settings.
	RefreshInterval    time.Duration
	OpenMeteoTimeout   time.Duration
	BatchSize          int
	BatchFlushInterval time.Duration

	// Forecast settings.
	DefaultModel string
	TrainWindow  time.Duration
	CacheTTL     time.Duration

	// Kafka sensor ingest and alert publishing (optional).
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaAlertTopic  string
	KafkaGroupID     string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	openMeteoTimeout, err := parseDuration("OPENMETEO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	trainWindow, err := parseDuration("TRAIN_WINDOW", "336h")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	lat, err := parseFloat("STATION_LAT", 21.004)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("STATION_LON", 105.843)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: envOrDefault("DB_PATH", "data/readings.db"),

		StationName: envOrDefault("STATION_NAME", "HUST Station"),
		StationLat:  lat,
		StationLon:  lon,

		RefreshInterval:    refreshInterval,
		OpenMeteoTimeout:   openMeteoTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DefaultModel: envOrDefault("DEFAULT_MODEL", "ets"),
		TrainWindow:  trainWindow,
		CacheTTL:     cacheTTL,

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "aq-sensor-readings"),
		KafkaAlertTopic:  envOrDefault("KAFKA_ALERT_TOPIC", "aq-alerts"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "hanoi-aq-nowcast"),
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.StationLat < -90 || cfg.StationLat > 90 {
		return nil, errors.New("STATION_LAT must be within [-90, 90]")
	}
	if cfg.StationLon < -180 || cfg.StationLon > 180 {
		return nil, errors.New("STATION_LON must be within [-180, 180]")
	}
	if cfg.TrainWindow < 24*time.Hour {
		return nil, errors.New("TRAIN_WINDOW must be at least 24h")
	}
	if cfg.BatchSize < 1 {
		return nil, errors.New("BATCH_SIZE must be at least 1")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
