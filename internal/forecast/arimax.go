package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
)

// ARIMAX is regression with ARIMA errors: PM2.5 is regressed on the
// exogenous weather series by OLS, and an ARIMA model is fit on the
// regression residuals. Future exogenous values are held at their last
// observed value (persistence).
type ARIMAX struct {
	Coeffs []float64 // intercept followed by one coefficient per regressor

	arima    *ARIMA
	lastExog []float64
	fitted   bool
}

// NewARIMAX creates an unfitted ARIMAX model whose error process is
// ARIMA(p,d,q).
func NewARIMAX(p, d, q int) *ARIMAX {
	return &ARIMAX{arima: NewARIMA(p, d, q)}
}

// Name implements Model.
func (m *ARIMAX) Name() string { return "arimax" }

// Fit regresses endog on the exogenous series and fits the error model on
// the residuals. At least one exogenous series is required, and each must
// share the endogenous series length.
func (m *ARIMAX) Fit(endog *timeseries.Series, exog ...*timeseries.Series) error {
	if len(exog) == 0 {
		return errors.New("arimax requires at least one exogenous series")
	}
	minLen := m.arima.P + m.arima.D + m.arima.Q + 10 + len(exog) + 1
	if err := validateTraining(endog, minLen); err != nil {
		return err
	}
	for i, ex := range exog {
		if ex.Len() != endog.Len() {
			return fmt.Errorf("exogenous series %d length %d does not match endogenous length %d", i, ex.Len(), endog.Len())
		}
		if ex.HasNaN() {
			return fmt.Errorf("exogenous series %d contains NaN; interpolate gaps first", i)
		}
	}

	n := endog.Len()
	k := len(exog) + 1

	x := make([][]float64, n)
	for r := 0; r < n; r++ {
		row := make([]float64, k)
		row[0] = 1
		for c, ex := range exog {
			row[c+1] = ex.Values[r]
		}
		x[r] = row
	}

	coeffs, residuals, err := olsFit(x, endog.Values)
	if err != nil {
		return fmt.Errorf("arimax regression: %w", err)
	}
	m.Coeffs = coeffs

	m.lastExog = make([]float64, len(exog))
	for i, ex := range exog {
		m.lastExog[i] = ex.Values[n-1]
	}

	residSeries := &timeseries.Series{
		Timestamps: endog.Timestamps,
		Values:     residuals,
		Name:       endog.Name,
	}
	if err := m.arima.Fit(residSeries); err != nil {
		return fmt.Errorf("arimax error model: %w", err)
	}

	m.fitted = true
	return nil
}

// Forecast combines the regression component under exogenous persistence
// with the ARIMA forecast of the error process. Interval widths come from
// the error model.
func (m *ARIMAX) Forecast(steps int) (Forecast, error) {
	if !m.fitted {
		return Forecast{}, ErrNotFitted
	}

	errFc, err := m.arima.Forecast(steps)
	if err != nil {
		return Forecast{}, err
	}

	regression := m.Coeffs[0]
	for i, v := range m.lastExog {
		regression += m.Coeffs[i+1] * v
	}

	f := Forecast{
		Timestamps: errFc.Timestamps,
		Mean:       make([]float64, steps),
		Lower:      make([]float64, steps),
		Upper:      make([]float64, steps),
	}
	for h := 0; h < steps; h++ {
		f.Mean[h] = regression + errFc.Mean[h]
		f.Lower[h] = regression + errFc.Lower[h]
		f.Upper[h] = regression + errFc.Upper[h]
		if math.IsNaN(f.Mean[h]) {
			return Forecast{}, errors.New("arimax forecast produced NaN")
		}
	}
	return f, nil
}
