package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
)

// VAR is a vector autoregression of order p over PM2.5 and the exogenous
// weather series, all treated endogenously. Each equation is estimated by
// OLS on an intercept plus p lags of every variable; multi-step forecasts
// iterate the fitted system. Only the PM2.5 equation is reported.
type VAR struct {
	P      int
	Coeffs [][]float64 // per variable: intercept then p*k lag coefficients

	fitted   bool
	data     [][]float64 // column per variable, PM2.5 first
	variance float64     // PM2.5 equation residual variance
	endog    *timeseries.Series
}

// NewVAR creates an unfitted VAR(p) model.
func NewVAR(p int) *VAR {
	return &VAR{P: p}
}

// Name implements Model.
func (m *VAR) Name() string { return "var" }

// Fit estimates the system. At least one exogenous series is required so the
// model is actually multivariate; each must share the endogenous length.
func (m *VAR) Fit(endog *timeseries.Series, exog ...*timeseries.Series) error {
	if m.P < 1 {
		return errors.New("var order must be at least 1")
	}
	if len(exog) == 0 {
		return errors.New("var requires at least one exogenous series")
	}

	k := 1 + len(exog)
	minLen := m.P*k + m.P + 10
	if err := validateTraining(endog, minLen); err != nil {
		return err
	}
	for i, ex := range exog {
		if ex.Len() != endog.Len() {
			return fmt.Errorf("series %d length %d does not match endogenous length %d", i, ex.Len(), endog.Len())
		}
		if ex.HasNaN() {
			return fmt.Errorf("series %d contains NaN; interpolate gaps first", i)
		}
	}

	n := endog.Len()
	data := make([][]float64, k)
	data[0] = endog.Values
	for i, ex := range exog {
		data[i+1] = ex.Values
	}
	m.data = data
	m.endog = endog

	// Shared design matrix: intercept + p lags of each variable.
	rows := n - m.P
	x := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		t := r + m.P
		row := make([]float64, 1+m.P*k)
		row[0] = 1
		idx := 1
		for lag := 1; lag <= m.P; lag++ {
			for v := 0; v < k; v++ {
				row[idx] = data[v][t-lag]
				idx++
			}
		}
		x[r] = row
	}

	m.Coeffs = make([][]float64, k)
	for v := 0; v < k; v++ {
		y := make([]float64, rows)
		for r := 0; r < rows; r++ {
			y[r] = data[v][r+m.P]
		}
		coeffs, residuals, err := olsFit(x, y)
		if err != nil {
			return fmt.Errorf("var equation %d: %w", v, err)
		}
		m.Coeffs[v] = coeffs

		if v == 0 {
			sse := 0.0
			for _, e := range residuals {
				sse += e * e
			}
			dof := rows - len(coeffs)
			if dof < 1 {
				dof = 1
			}
			m.variance = sse / float64(dof)
		}
	}

	m.fitted = true
	return nil
}

// Forecast iterates the fitted system steps hours ahead. Interval width for
// the PM2.5 equation grows with the square root of the horizon.
func (m *VAR) Forecast(steps int) (Forecast, error) {
	if !m.fitted {
		return Forecast{}, ErrNotFitted
	}
	if steps < 1 {
		return Forecast{}, errors.New("steps must be at least 1")
	}

	k := len(m.data)
	n := len(m.data[0])

	// Extended history per variable, filled in as the iteration advances.
	ext := make([][]float64, k)
	for v := 0; v < k; v++ {
		ext[v] = make([]float64, n+steps)
		copy(ext[v], m.data[v])
	}

	for h := 0; h < steps; h++ {
		t := n + h
		for v := 0; v < k; v++ {
			pred := m.Coeffs[v][0]
			idx := 1
			for lag := 1; lag <= m.P; lag++ {
				for u := 0; u < k; u++ {
					pred += m.Coeffs[v][idx] * ext[u][t-lag]
					idx++
				}
			}
			ext[v][t] = pred
		}
	}

	last, _, _ := m.endog.Last()
	f := Forecast{
		Timestamps: continueHourly(last, steps),
		Mean:       make([]float64, steps),
		Lower:      make([]float64, steps),
		Upper:      make([]float64, steps),
	}
	for h := 0; h < steps; h++ {
		mean := ext[0][n+h]
		half := z95 * math.Sqrt(m.variance*float64(h+1))
		f.Mean[h] = mean
		f.Lower[h] = mean - half
		f.Upper[h] = mean + half
	}
	return f, nil
}
