package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// nowcast service.
type Metrics struct {
	ReadingsIngested prometheus.Counter
	IngestErrors     prometheus.Counter
	PipelineRunning  prometheus.Gauge
	BatchSize        prometheus.Histogram

	// Open-Meteo fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: source={air_quality,weather}, outcome={success,error}

	// Forecast metrics.
	ForecastRequests *prometheus.CounterVec   // labels: model
	ForecastErrors   *prometheus.CounterVec   // labels: model
	ForecastDuration *prometheus.HistogramVec // labels: model
	ForecastCache    *prometheus.CounterVec   // labels: result={hit,miss}

	AlertsPublished *prometheus.CounterVec // labels: level={advisory,alert}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReadingsIngested,
		m.IngestErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.FetchRequests,
		m.ForecastRequests,
		m.ForecastErrors,
		m.ForecastDuration,
		m.ForecastCache,
		m.AlertsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so multiple
// tests can construct fresh sets without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "readings_ingested_total",
			Help:      "Total hourly readings persisted to the store.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "ingest_errors_total",
			Help:      "Total ingest failures (parse, validation, or store).",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aq_nowcast",
			Name:      "pipeline_running",
			Help:      "1 when the sensor ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_nowcast",
			Name:      "batch_size",
			Help:      "Number of sensor messages per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "fetch_requests_total",
			Help:      "Open-Meteo fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "forecast_requests_total",
			Help:      "Nowcast requests by model.",
		}, []string{"model"}),
		ForecastErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "forecast_errors_total",
			Help:      "Nowcast failures by model.",
		}, []string{"model"}),
		ForecastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aq_nowcast",
			Name:      "forecast_duration_seconds",
			Help:      "Model fit plus forecast duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"model"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "forecast_cache_total",
			Help:      "Nowcast cache lookups by result.",
		}, []string{"result"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_nowcast",
			Name:      "alerts_published_total",
			Help:      "Alerts published to the alert topic by level.",
		}, []string{"level"}),
	}
}
