// Package forecast implements the time-series model families used for PM2.5
// nowcasting: exponential smoothing (ETS), ARIMA, ARIMA with exogenous
// weather regressors (ARIMAX), and vector autoregression (VAR).
//
// All models are fit on an hourly PM2.5 series and produce point forecasts
// with 95% prediction intervals for 1-6 hours ahead. Multivariate models
// additionally take exogenous weather series aligned to the same hourly
// index. Future exogenous values are unknown at nowcast time and are held at
// their last observed value.
package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
)

// z95 is the two-sided 95% normal quantile used for prediction intervals.
const z95 = 1.959963984540054

// ErrNotFitted is returned by Forecast when Fit has not succeeded.
var ErrNotFitted = errors.New("model must be fitted before forecasting")

// Forecast holds per-step point forecasts with 95% prediction intervals.
// Timestamps continue hourly from the end of the training series. All slices
// have the same length.
type Forecast struct {
	Timestamps []time.Time
	Mean       []float64
	Lower      []float64
	Upper      []float64
}

// Model is a forecasting model for an hourly series. Exogenous series are
// ignored by univariate models.
type Model interface {
	// Name returns the registry name of the model family.
	Name() string

	// Fit estimates model parameters from the endogenous series. Exogenous
	// series, when used, must share the endogenous timestamp index.
	Fit(endog *timeseries.Series, exog ...*timeseries.Series) error

	// Forecast produces steps hour-ahead forecasts. Fit must have succeeded.
	Forecast(steps int) (Forecast, error)
}

// New constructs a model by registry name with default orders.
func New(name string) (Model, error) {
	switch name {
	case "ets":
		return NewETS(), nil
	case "arima":
		return NewARIMA(1, 1, 1), nil
	case "arimax":
		return NewARIMAX(1, 1, 1), nil
	case "var":
		return NewVAR(2), nil
	default:
		return nil, fmt.Errorf("unknown model %q", name)
	}
}

// Names lists the registered model names in presentation order.
func Names() []string {
	return []string{"ets", "arima", "arimax", "var"}
}

// continueHourly builds steps timestamps following the last training
// timestamp at one-hour cadence.
func continueHourly(last time.Time, steps int) []time.Time {
	out := make([]time.Time, steps)
	for i := range out {
		out[i] = last.Add(time.Duration(i+1) * time.Hour)
	}
	return out
}

// validateTraining rejects series that are too short or still contain NaN.
func validateTraining(s *timeseries.Series, minLen int) error {
	if s == nil || s.Len() < minLen {
		return fmt.Errorf("insufficient training data: need at least %d observations", minLen)
	}
	if s.HasNaN() {
		return errors.New("training series contains NaN; interpolate gaps first")
	}
	return nil
}
