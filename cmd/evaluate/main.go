// Command evaluate backtests the forecasting models against stored readings
// using rolling-origin evaluation: for each origin hour, every model is fit
// on the preceding window and its 1-6 hour forecasts are scored against the
// observations that followed. Models are compared with a persistence
// baseline (tomorrow equals today).
//
// Usage:
//
//	go run ./cmd/evaluate -origins 48 -window 336
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/forecast"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/nowcast"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/store"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
)

const horizon = 6

// score accumulates absolute and squared forecast errors per horizon step,
// plus hit counts for the Unhealthy (90 µg/m³) exceedances that drive alerts.
type score struct {
	absErr [horizon]float64
	sqErr  [horizon]float64
	n      [horizon]int

	exceedances int // hours where the observed value crossed the threshold
	exceedHits  int // of those, hours the forecast also crossed it
}

func (s *score) add(step int, predicted, actual float64) {
	err := predicted - actual
	s.absErr[step] += math.Abs(err)
	s.sqErr[step] += err * err
	s.n[step]++

	if actual > domain.ThresholdSensitive {
		s.exceedances++
		if predicted > domain.ThresholdSensitive {
			s.exceedHits++
		}
	}
}

func (s *score) mae(step int) float64 {
	if s.n[step] == 0 {
		return math.NaN()
	}
	return s.absErr[step] / float64(s.n[step])
}

func (s *score) rmse(step int) float64 {
	if s.n[step] == 0 {
		return math.NaN()
	}
	return math.Sqrt(s.sqErr[step] / float64(s.n[step]))
}

func (s *score) overallMAE() float64 {
	sum, n := 0.0, 0
	for i := 0; i < horizon; i++ {
		sum += s.absErr[i]
		n += s.n[i]
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func main() {
	origins := flag.Int("origins", 48, "number of rolling forecast origins")
	window := flag.Int("window", 336, "training window in hours")
	flag.Parse()

	if code := run(*origins, *window); code != 0 {
		os.Exit(code)
	}
}

func run(origins, window int) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open store: %v\n", err)
		return 1
	}
	defer st.Close()

	series, exog, err := loadSeries(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	needed := window + origins + horizon
	if series.Len() < needed {
		fmt.Fprintf(os.Stderr, "FATAL: need %d hourly readings, have %d (run backfill first)\n", needed, series.Len())
		return 1
	}

	fmt.Println("=== Rolling-Origin Forecast Evaluation ===")
	fmt.Printf("Readings: %d hours, window: %d, origins: %d, horizon: %d\n\n", series.Len(), window, origins, horizon)

	baseline := evaluatePersistence(series, origins)

	allOK := true
	for _, name := range forecast.Names() {
		s, failures := evaluateModel(name, series, exog, origins, window)
		reportModel(name, s, failures, baseline)
		if s.overallMAE() > baseline.overallMAE() {
			allOK = false
		}
	}

	fmt.Printf("\npersistence baseline: MAE %.2f µg/m³\n", baseline.overallMAE())
	if !allOK {
		fmt.Println("\nSome models underperform the persistence baseline.")
		return 1
	}
	fmt.Println("\nAll models beat or match the persistence baseline.")
	return 0
}

// loadSeries builds the evaluation PM2.5 series and its weather regressors
// from every stored reading, with nowcast.TrainingSeries so backtests see the
// same inputs the service fits on.
func loadSeries(st *store.Store) (*timeseries.Series, []*timeseries.Series, error) {
	readings, err := st.ReadingsSince(context.Background(), time.Unix(0, 0))
	if err != nil {
		return nil, nil, fmt.Errorf("load readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, nil, fmt.Errorf("store is empty (run backfill first)")
	}

	series, exog := nowcast.TrainingSeries(readings)
	return series, exog, nil
}

// evaluateModel scores one model family over all rolling origins. Fit
// failures at individual origins are counted, not fatal.
func evaluateModel(name string, series *timeseries.Series, exog []*timeseries.Series, origins, window int) (*score, int) {
	s := &score{}
	failures := 0

	first := series.Len() - origins - horizon
	for o := 0; o < origins; o++ {
		origin := first + o
		train := series.Slice(origin-window, origin)
		trainExog := make([]*timeseries.Series, len(exog))
		for i, x := range exog {
			trainExog[i] = x.Slice(origin-window, origin)
		}

		m, err := forecast.New(name)
		if err != nil {
			failures++
			continue
		}
		if err := m.Fit(train, trainExog...); err != nil {
			failures++
			continue
		}
		fc, err := m.Forecast(horizon)
		if err != nil {
			failures++
			continue
		}

		for h := 0; h < horizon; h++ {
			s.add(h, math.Max(fc.Mean[h], 0), series.Values[origin+h])
		}
	}
	return s, failures
}

// evaluatePersistence scores the flat last-value forecast.
func evaluatePersistence(series *timeseries.Series, origins int) *score {
	s := &score{}
	first := series.Len() - origins - horizon
	for o := 0; o < origins; o++ {
		origin := first + o
		last := series.Values[origin-1]
		for h := 0; h < horizon; h++ {
			s.add(h, last, series.Values[origin+h])
		}
	}
	return s
}

func reportModel(name string, s *score, failures int, baseline *score) {
	status := "\033[32mOK\033[0m"
	if s.overallMAE() > baseline.overallMAE() {
		status = "\033[31mWORSE THAN BASELINE\033[0m"
	}
	fmt.Printf("%-8s MAE %.2f  RMSE(h1) %.2f  RMSE(h6) %.2f  fit failures %d  %s\n",
		name, s.overallMAE(), s.rmse(0), s.rmse(horizon-1), failures, status)

	fmt.Print("         per-horizon MAE:")
	for h := 0; h < horizon; h++ {
		fmt.Printf(" h%d=%.2f", h+1, s.mae(h))
	}
	fmt.Println()

	if s.exceedances > 0 {
		fmt.Printf("         >90 µg/m³ exceedances caught: %d/%d\n", s.exceedHits, s.exceedances)
	}
}
