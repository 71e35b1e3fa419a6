package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coupledSystem generates two interacting series: pm depends on its own lag
// and the lagged weather variable.
func coupledSystem(n int, seed int64) (*timeseries.Series, *timeseries.Series) {
	rng := rand.New(rand.NewSource(seed))
	pm := make([]float64, n)
	wx := make([]float64, n)
	pm[0], wx[0] = 50, 10
	for i := 1; i < n; i++ {
		wx[i] = 5 + 0.5*wx[i-1] + rng.NormFloat64()
		pm[i] = 10 + 0.6*pm[i-1] + 0.8*wx[i-1] + 2*rng.NormFloat64()
	}
	return timeseries.FromValues(trainStart, pm), timeseries.FromValues(trainStart, wx)
}

func TestVAR_FitAndForecast(t *testing.T) {
	pm, wx := coupledSystem(300, 13)

	m := NewVAR(2)
	require.NoError(t, m.Fit(pm, wx))

	// One coefficient vector per variable: intercept + p*k lags.
	require.Len(t, m.Coeffs, 2)
	require.Len(t, m.Coeffs[0], 1+2*2)

	fc, err := m.Forecast(6)
	require.NoError(t, err)
	require.Len(t, fc.Mean, 6)

	for h := 0; h < 6; h++ {
		assert.False(t, math.IsNaN(fc.Mean[h]))
		assert.Less(t, fc.Lower[h], fc.Mean[h])
		assert.Greater(t, fc.Upper[h], fc.Mean[h])
	}

	// Interval width grows with sqrt(h+1).
	w1 := fc.Upper[0] - fc.Lower[0]
	w4 := fc.Upper[3] - fc.Lower[3]
	assert.InDelta(t, 2.0, w4/w1, 1e-9)
}

func TestVAR_ForecastStaysNearProcessMean(t *testing.T) {
	pm, wx := coupledSystem(400, 29)

	m := NewVAR(2)
	require.NoError(t, m.Fit(pm, wx))

	fc, err := m.Forecast(6)
	require.NoError(t, err)

	// A stationary system forecast should stay in the vicinity of the sample
	// mean rather than diverge.
	mean := pm.Mean()
	sd := pm.Std()
	for h := 0; h < 6; h++ {
		assert.InDelta(t, mean, fc.Mean[h], 4*sd, "step %d", h+1)
	}
}

func TestVAR_ValidationErrors(t *testing.T) {
	pm, wx := coupledSystem(100, 3)

	t.Run("no exogenous series", func(t *testing.T) {
		err := NewVAR(2).Fit(pm)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exogenous")
	})

	t.Run("order below one", func(t *testing.T) {
		require.Error(t, NewVAR(0).Fit(pm, wx))
	})

	t.Run("length mismatch", func(t *testing.T) {
		require.Error(t, NewVAR(2).Fit(pm, wx.Slice(0, 50)))
	})

	t.Run("NaN in series", func(t *testing.T) {
		bad := wx.Copy()
		bad.Values[5] = math.NaN()
		require.Error(t, NewVAR(2).Fit(pm, bad))
	})

	t.Run("forecast before fit", func(t *testing.T) {
		_, err := NewVAR(2).Forecast(3)
		assert.ErrorIs(t, err, ErrNotFitted)
	})
}
