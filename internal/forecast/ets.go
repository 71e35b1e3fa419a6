package forecast

import (
	"errors"
	"math"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
)

// ETS is Holt's linear-trend exponential smoothing model. Smoothing
// parameters are selected by grid search over the in-sample one-step sum of
// squared errors.
type ETS struct {
	Alpha    float64 // level smoothing
	Beta     float64 // trend smoothing
	Level    float64
	Trend    float64
	Variance float64 // one-step residual variance

	fitted bool
	data   *timeseries.Series
}

// NewETS creates an unfitted ETS model.
func NewETS() *ETS {
	return &ETS{}
}

// Name implements Model.
func (m *ETS) Name() string { return "ets" }

// Fit selects alpha and beta on a 0.05-step grid and stores the final level
// and trend state. Exogenous series are ignored.
func (m *ETS) Fit(endog *timeseries.Series, _ ...*timeseries.Series) error {
	if err := validateTraining(endog, 12); err != nil {
		return err
	}
	m.data = endog

	bestSSE := math.Inf(1)
	for alpha := 0.05; alpha <= 0.951; alpha += 0.05 {
		for beta := 0.05; beta <= 0.951; beta += 0.05 {
			sse := holtSSE(endog.Values, alpha, beta)
			if sse < bestSSE {
				bestSSE = sse
				m.Alpha = alpha
				m.Beta = beta
			}
		}
	}

	level, trend := holtState(endog.Values, m.Alpha, m.Beta)
	m.Level = level
	m.Trend = trend

	n := float64(endog.Len())
	m.Variance = bestSSE / (n - 2)
	m.fitted = true
	return nil
}

// Forecast extrapolates the level-plus-trend state. Interval variance at
// horizon h is sigma^2 * (1 + (h-1)*(alpha^2 + alpha*beta*h + beta^2*h*(2h-1)/6)),
// the class 1 forecast variance for Holt's method.
func (m *ETS) Forecast(steps int) (Forecast, error) {
	if !m.fitted {
		return Forecast{}, ErrNotFitted
	}
	if steps < 1 {
		return Forecast{}, errors.New("steps must be at least 1")
	}

	last, _, _ := m.data.Last()
	f := Forecast{
		Timestamps: continueHourly(last, steps),
		Mean:       make([]float64, steps),
		Lower:      make([]float64, steps),
		Upper:      make([]float64, steps),
	}

	for i := 0; i < steps; i++ {
		h := float64(i + 1)
		mean := m.Level + h*m.Trend

		grow := 1.0
		if i > 0 {
			grow = 1 + (h-1)*(m.Alpha*m.Alpha+m.Alpha*m.Beta*h+m.Beta*m.Beta*h*(2*h-1)/6)
		}
		half := z95 * math.Sqrt(m.Variance*grow)

		f.Mean[i] = mean
		f.Lower[i] = mean - half
		f.Upper[i] = mean + half
	}
	return f, nil
}

// holtSSE runs the Holt recursion and returns the one-step SSE.
func holtSSE(y []float64, alpha, beta float64) float64 {
	level := y[0]
	trend := y[1] - y[0]

	sse := 0.0
	for t := 1; t < len(y); t++ {
		pred := level + trend
		err := y[t] - pred
		sse += err * err

		prevLevel := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	return sse
}

// holtState runs the recursion and returns the final level and trend.
func holtState(y []float64, alpha, beta float64) (float64, float64) {
	level := y[0]
	trend := y[1] - y[0]
	for t := 1; t < len(y); t++ {
		prevLevel := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	return level, trend
}
