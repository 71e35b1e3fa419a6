package http

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/nowcast"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	observedColor = drawing.Color{R: 31, G: 119, B: 180, A: 255}
	forecastColor = drawing.Color{R: 214, G: 39, B: 40, A: 255}
	intervalColor = drawing.Color{R: 214, G: 39, B: 40, A: 90}
	gridColor     = drawing.Color{R: 160, G: 160, B: 160, A: 120}
)

// handleChart serves GET /chart.png?model=ets&hours=6&history=48 as a PNG of
// the recent observations with the forecast and its 95% interval.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	historyHours, err := intParam(r, "history", defaultHistoryHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, ok := s.nowcastFromRequest(w, r)
	if !ok {
		return
	}

	readings, err := s.nowcaster.History(r.Context(), historyHours)
	if err != nil {
		s.logger.Error("chart history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to load readings"))
		return
	}

	png, err := renderChart(readings, result)
	if err != nil {
		s.logger.Error("chart render failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("chart render failed"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png) //nolint:errcheck // best-effort image response
}

// renderChart draws observed PM2.5, the forecast mean, and the interval
// bounds, with gridlines at the AQI category thresholds.
func renderChart(readings []domain.Reading, result *nowcast.Result) ([]byte, error) {
	obsX, obsY := observedPoints(readings)
	fcX, fcY, loY, upY := forecastPoints(obsX, obsY, result.Forecast)

	if len(obsX)+len(fcX) < 2 {
		return nil, errors.New("not enough points to chart")
	}

	graph := chart.Chart{
		Title:  result.Station + " PM2.5 nowcast (" + result.Model + ")",
		Width:  920,
		Height: 420,
		Background: chart.Style{
			Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02 15:04"),
		},
		YAxis: chart.YAxis{
			Name: "PM2.5 (µg/m³)",
			GridLines: []chart.GridLine{
				{Value: domain.ThresholdGood},
				{Value: domain.ThresholdModerate},
				{Value: domain.ThresholdSensitive},
				{Value: domain.ThresholdUnhealthy},
			},
			GridMajorStyle: chart.Style{
				StrokeColor:     gridColor,
				StrokeWidth:     1.0,
				StrokeDashArray: []float64{2, 4},
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "observed",
				XValues: obsX,
				YValues: obsY,
				Style:   chart.Style{StrokeColor: observedColor, StrokeWidth: 2.0},
			},
			chart.TimeSeries{
				Name:    "forecast",
				XValues: fcX,
				YValues: fcY,
				Style:   chart.Style{StrokeColor: forecastColor, StrokeWidth: 2.0},
			},
			chart.TimeSeries{
				Name:    "95% lower",
				XValues: fcX,
				YValues: loY,
				Style:   chart.Style{StrokeColor: intervalColor, StrokeWidth: 1.0, StrokeDashArray: []float64{4, 4}},
			},
			chart.TimeSeries{
				Name:    "95% upper",
				XValues: fcX,
				YValues: upY,
				Style:   chart.Style{StrokeColor: intervalColor, StrokeWidth: 1.0, StrokeDashArray: []float64{4, 4}},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// observedPoints extracts plottable PM2.5 observations, skipping hours where
// the measurement is missing.
func observedPoints(readings []domain.Reading) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(readings))
	ys := make([]float64, 0, len(readings))
	for _, r := range readings {
		if math.IsNaN(r.PM25) {
			continue
		}
		xs = append(xs, r.Timestamp)
		ys = append(ys, r.PM25)
	}
	return xs, ys
}

// forecastPoints builds the forecast series, anchored at the last observation
// so the observed and forecast lines connect.
func forecastPoints(obsX []time.Time, obsY []float64, points []nowcast.Point) ([]time.Time, []float64, []float64, []float64) {
	xs := make([]time.Time, 0, len(points)+1)
	mean := make([]float64, 0, len(points)+1)
	lower := make([]float64, 0, len(points)+1)
	upper := make([]float64, 0, len(points)+1)

	if n := len(obsX); n > 0 {
		xs = append(xs, obsX[n-1])
		mean = append(mean, obsY[n-1])
		lower = append(lower, obsY[n-1])
		upper = append(upper, obsY[n-1])
	}
	for _, p := range points {
		xs = append(xs, p.Timestamp)
		mean = append(mean, p.PM25)
		lower = append(lower, p.Lower)
		upper = append(upper, p.Upper)
	}
	return xs, mean, lower, upper
}
