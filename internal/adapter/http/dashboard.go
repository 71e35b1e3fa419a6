package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/forecast"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/nowcast"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// dashboardData feeds the dashboard template. Error is set instead of Result
// when the nowcast cannot be produced yet.
type dashboardData struct {
	Result      *nowcast.Result
	Error       string
	Model       string
	Hours       int
	Models      []string
	HourOptions []int
}

// handleDashboard serves the interactive dashboard page. Model and hours
// query parameters select the forecast shown; the page still renders when no
// forecast is available yet.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" || !knownModel(model) {
		model = s.nowcaster.DefaultModel()
	}
	hours, err := intParam(r, "hours", nowcast.MaxHorizon)
	if err != nil || hours < 1 || hours > nowcast.MaxHorizon {
		hours = nowcast.MaxHorizon
	}

	hourOptions := make([]int, nowcast.MaxHorizon)
	for i := range hourOptions {
		hourOptions[i] = i + 1
	}

	data := dashboardData{
		Model:       model,
		Hours:       hours,
		Models:      forecast.Names(),
		HourOptions: hourOptions,
	}

	result, err := s.nowcaster.Nowcast(r.Context(), model, hours)
	if err != nil {
		s.logger.Warn("dashboard nowcast unavailable", "model", model, "error", err)
		data.Error = "Forecast unavailable: waiting for readings to be ingested."
	} else {
		data.Result = result
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("dashboard render failed", "error", err)
	}
}
