// Package http exposes the nowcast API, the dashboard, and the operational
// endpoints (health, readiness, metrics).
package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/forecast"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/nowcast"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultHistoryHours is the readings window shown when none is requested.
const defaultHistoryHours = 48

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Nowcaster produces forecasts and serves stored readings.
type Nowcaster interface {
	Nowcast(ctx context.Context, model string, hours int) (*nowcast.Result, error)
	History(ctx context.Context, hours int) ([]domain.Reading, error)
	DefaultModel() string
}

// Server exposes the dashboard, nowcast API, and operational HTTP endpoints.
type Server struct {
	httpServer *http.Server
	nowcaster  Nowcaster
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, nowcaster Nowcaster, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		nowcaster: nowcaster,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/nowcast", s.handleNowcast)
	mux.HandleFunc("GET /api/nowcast.csv", s.handleNowcastCSV)
	mux.HandleFunc("GET /api/readings", s.handleReadings)
	mux.HandleFunc("GET /chart.png", s.handleChart)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  forecast.Names(),
		"default": s.nowcaster.DefaultModel(),
	})
}

// handleNowcast serves GET /api/nowcast?model=ets&hours=6.
func (s *Server) handleNowcast(w http.ResponseWriter, r *http.Request) {
	result, ok := s.nowcastFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleNowcastCSV serves the forecast as a CSV download.
func (s *Server) handleNowcastCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := s.nowcastFromRequest(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("nowcast_%s_%s.csv", result.Model, result.GeneratedAt.Format("20060102T1504"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"timestamp", "model", "pm2_5", "lower", "upper", "aqi", "category"})
	for _, p := range result.Forecast {
		_ = cw.Write([]string{
			p.Timestamp.UTC().Format(time.RFC3339),
			result.Model,
			strconv.FormatFloat(p.PM25, 'f', 2, 64),
			strconv.FormatFloat(p.Lower, 'f', 2, 64),
			strconv.FormatFloat(p.Upper, 'f', 2, 64),
			strconv.Itoa(p.AQI.AQI),
			string(p.AQI.Category),
		})
	}
	cw.Flush()
}

// handleReadings serves GET /api/readings?hours=48.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", defaultHistoryHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	readings, err := s.nowcaster.History(r.Context(), hours)
	if err != nil {
		s.logger.Error("readings query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to load readings"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hours":    hours,
		"count":    len(readings),
		"readings": readings,
	})
}

// nowcastFromRequest parses model and hours parameters, runs the nowcast, and
// writes the error response on failure. The bool is false when a response has
// already been written.
func (s *Server) nowcastFromRequest(w http.ResponseWriter, r *http.Request) (*nowcast.Result, bool) {
	model := r.URL.Query().Get("model")
	if model != "" && !knownModel(model) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown model %q", model))
		return nil, false
	}

	hours, err := intParam(r, "hours", nowcast.MaxHorizon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}

	result, err := s.nowcaster.Nowcast(r.Context(), model, hours)
	if err != nil {
		if errors.Is(err, nowcast.ErrNoData) {
			writeError(w, http.StatusServiceUnavailable, err)
			return nil, false
		}
		s.logger.Error("nowcast failed", "model", model, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("nowcast failed"))
		return nil, false
	}
	return result, true
}

func knownModel(name string) bool {
	for _, m := range forecast.Names() {
		if m == name {
			return true
		}
	}
	return false
}

func intParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter %q", key, raw)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
