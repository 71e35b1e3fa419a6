package forecast

import (
	"errors"
	"math"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
)

// ARIMA is an AutoRegressive Integrated Moving Average model of order
// (p, d, q), estimated by conditional sum of squares with Yule-Walker
// initialization of the AR terms.
type ARIMA struct {
	P, D, Q   int
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	BIC       float64

	fitted    bool
	data      *timeseries.Series
	diffData  *timeseries.Series
	residuals []float64
}

// NewARIMA creates an unfitted ARIMA(p,d,q) model.
func NewARIMA(p, d, q int) *ARIMA {
	return &ARIMA{
		P:        p,
		D:        d,
		Q:        q,
		ARCoeffs: make([]float64, p),
		MACoeffs: make([]float64, q),
	}
}

// Name implements Model.
func (m *ARIMA) Name() string { return "arima" }

// Fit estimates the model on the endogenous series. Exogenous series are
// ignored; see ARIMAX.
func (m *ARIMA) Fit(endog *timeseries.Series, _ ...*timeseries.Series) error {
	if err := validateTraining(endog, m.P+m.D+m.Q+10); err != nil {
		return err
	}
	m.data = endog

	diff := endog
	for i := 0; i < m.D; i++ {
		diff = diff.Diff()
		if diff.Len() == 0 {
			return errors.New("differencing produced an empty series")
		}
	}
	m.diffData = diff

	if err := m.fitCSS(); err != nil {
		return err
	}
	m.calculateIC()
	m.fitted = true
	return nil
}

// fitCSS estimates parameters by conditional sum of squares on the
// differenced series.
func (m *ARIMA) fitCSS() error {
	y := m.diffData.Values
	n := len(y)

	if m.P == 0 && m.Q == 0 {
		// White noise with drift.
		mean := 0.0
		for _, v := range y {
			mean += v
		}
		m.Intercept = mean / float64(n)
		m.residuals = make([]float64, n)
		sse := 0.0
		for i, v := range y {
			m.residuals[i] = v - m.Intercept
			sse += m.residuals[i] * m.residuals[i]
		}
		m.Variance = sse / float64(n-1)
		return nil
	}

	if m.P > 0 {
		if acf := autocorrelation(y, m.P); acf != nil {
			if phi := yuleWalker(acf, m.P); phi != nil {
				copy(m.ARCoeffs, phi)
			}
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	m.refineCSS(y)
	return nil
}

// refineCSS iteratively refines coefficients by gradient steps on the
// conditional sum of squares, bounding each coefficient inside the unit
// interval for stationarity/invertibility.
func (m *ARIMA) refineCSS(y []float64) {
	n := len(y)
	p, q := m.P, m.Q

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	m.Intercept = mean / float64(n)

	const (
		maxIter      = 100
		tolerance    = 1e-6
		learningRate = 0.01
	)

	startIdx := p
	if q > startIdx {
		startIdx = q
	}

	residuals := make([]float64, n)
	prevSSE := math.Inf(1)

	for iter := 0; iter < maxIter; iter++ {
		sse := m.computeResiduals(y, residuals, startIdx)

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		for t := startIdx; t < n; t++ {
			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		for i := 0; i < p; i++ {
			m.ARCoeffs[i] -= learningRate * arGrad[i] / float64(n)
			m.ARCoeffs[i] = math.Max(-0.99, math.Min(0.99, m.ARCoeffs[i]))
		}
		for i := 0; i < q; i++ {
			m.MACoeffs[i] -= learningRate * maGrad[i] / float64(n)
			m.MACoeffs[i] = math.Max(-0.99, math.Min(0.99, m.MACoeffs[i]))
		}

		if math.Abs(prevSSE-sse) < tolerance {
			break
		}
		prevSSE = sse
	}

	// Final residual pass with the settled coefficients.
	sse := m.computeResiduals(y, residuals, startIdx)
	m.residuals = residuals

	count := n - startIdx
	if count > p+q+1 {
		m.Variance = sse / float64(count-p-q-1)
	} else if count > 0 {
		m.Variance = sse / float64(count)
	}
}

// computeResiduals fills residuals in place and returns the SSE over
// t >= startIdx. Entries before startIdx are deviations from the intercept.
func (m *ARIMA) computeResiduals(y, residuals []float64, startIdx int) float64 {
	sse := 0.0
	for t := 0; t < len(y); t++ {
		if t < startIdx {
			residuals[t] = y[t] - m.Intercept
			continue
		}
		pred := m.Intercept
		for i := 0; i < m.P; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < m.Q; i++ {
			pred += m.MACoeffs[i] * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return sse
}

// calculateIC computes AIC and BIC from the Gaussian log-likelihood.
func (m *ARIMA) calculateIC() {
	n := len(m.residuals)
	k := m.P + m.Q + 1

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}

	logLik := math.Inf(-1)
	if m.Variance > 0 {
		logLik = -float64(n)/2*math.Log(2*math.Pi) - float64(n)/2*math.Log(m.Variance) - sse/(2*m.Variance)
	}
	m.AIC = -2*logLik + 2*float64(k)
	m.BIC = -2*logLik + float64(k)*math.Log(float64(n))
}

// Forecast generates steps-ahead forecasts with 95% intervals from the
// psi-weight representation of the forecast error variance.
func (m *ARIMA) Forecast(steps int) (Forecast, error) {
	if !m.fitted {
		return Forecast{}, ErrNotFitted
	}
	if steps < 1 {
		return Forecast{}, errors.New("steps must be at least 1")
	}

	mean := m.forecastMean(steps)
	psi := psiWeights(m.ARCoeffs, m.MACoeffs, steps)
	for i := 0; i < m.D; i++ {
		psi = cumulative(psi)
	}

	last, _, _ := m.data.Last()
	f := Forecast{
		Timestamps: continueHourly(last, steps),
		Mean:       mean,
		Lower:      make([]float64, steps),
		Upper:      make([]float64, steps),
	}

	variance := 0.0
	for h := 0; h < steps; h++ {
		variance += psi[h] * psi[h]
		half := z95 * math.Sqrt(m.Variance*variance)
		f.Lower[h] = mean[h] - half
		f.Upper[h] = mean[h] + half
	}
	return f, nil
}

// forecastMean iterates the ARMA recursion on the differenced scale and
// integrates back to levels.
func (m *ARIMA) forecastMean(steps int) []float64 {
	y := m.diffData.Values
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept
		for i := 0; i < m.P && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		for i := 0; i < m.Q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extResiduals[t-i-1]
		}
		extY[t] = pred
	}

	forecasts := make([]float64, steps)
	copy(forecasts, extY[n:])
	if m.D > 0 {
		forecasts = m.integrate(forecasts)
	}
	return forecasts
}

// integrate undoes d-fold differencing to return forecasts on the original
// scale.
func (m *ARIMA) integrate(forecasts []float64) []float64 {
	original := m.data.Values
	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	for i := 0; i < m.D; i++ {
		lastVal := original[len(original)-1-i]
		for j := range result {
			if j == 0 {
				result[j] += lastVal
			} else {
				result[j] += result[j-1]
			}
		}
	}
	return result
}

// Residuals returns a copy of the fitted residuals on the differenced scale.
func (m *ARIMA) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	out := make([]float64, len(m.residuals))
	copy(out, m.residuals)
	return out
}

// psiWeights expands an ARMA(p,q) model into its first n moving-average
// representation weights, psi[0] = 1.
func psiWeights(phi, theta []float64, n int) []float64 {
	psi := make([]float64, n)
	if n == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j-1 < len(theta) {
			v = theta[j-1]
		}
		for i := 0; i < len(phi) && i < j; i++ {
			v += phi[i] * psi[j-1-i]
		}
		psi[j] = v
	}
	return psi
}

// cumulative returns the running sum of w, the psi-weight transform of one
// integration step.
func cumulative(w []float64) []float64 {
	out := make([]float64, len(w))
	sum := 0.0
	for i, v := range w {
		sum += v
		out[i] = sum
	}
	return out
}
