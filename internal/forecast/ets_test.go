package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETS_RecoversLinearTrend(t *testing.T) {
	// Holt's recursion reproduces an exact linear trend for any smoothing
	// parameters, so the forecast should continue it with zero error.
	s := linearSeries(48, 10, 2)

	m := NewETS()
	require.NoError(t, m.Fit(s))

	fc, err := m.Forecast(6)
	require.NoError(t, err)
	require.Len(t, fc.Mean, 6)

	last := s.Values[s.Len()-1]
	for h := 0; h < 6; h++ {
		assert.InDelta(t, last+2*float64(h+1), fc.Mean[h], 1e-6, "step %d", h+1)
	}

	lastTS, _, _ := s.Last()
	assert.Equal(t, lastTS.Add(time.Hour), fc.Timestamps[0])
	assert.Equal(t, lastTS.Add(6*time.Hour), fc.Timestamps[5])
}

func TestETS_IntervalsWidenWithHorizon(t *testing.T) {
	s := noisySeries(72, 50, 5, 7)

	m := NewETS()
	require.NoError(t, m.Fit(s))

	fc, err := m.Forecast(6)
	require.NoError(t, err)

	prevWidth := 0.0
	for h := 0; h < 6; h++ {
		width := fc.Upper[h] - fc.Lower[h]
		assert.Greater(t, width, 0.0)
		assert.GreaterOrEqual(t, width, prevWidth, "interval narrowed at step %d", h+1)
		assert.Less(t, fc.Lower[h], fc.Mean[h])
		assert.Greater(t, fc.Upper[h], fc.Mean[h])
		prevWidth = width
	}
}

func TestETS_SmoothingParametersOnGrid(t *testing.T) {
	s := noisySeries(48, 40, 3, 11)

	m := NewETS()
	require.NoError(t, m.Fit(s))

	assert.GreaterOrEqual(t, m.Alpha, 0.05)
	assert.LessOrEqual(t, m.Alpha, 0.95)
	assert.GreaterOrEqual(t, m.Beta, 0.05)
	assert.LessOrEqual(t, m.Beta, 0.95)
}

func TestETS_Errors(t *testing.T) {
	t.Run("forecast before fit", func(t *testing.T) {
		_, err := NewETS().Forecast(3)
		assert.ErrorIs(t, err, ErrNotFitted)
	})

	t.Run("too few observations", func(t *testing.T) {
		require.Error(t, NewETS().Fit(linearSeries(11, 0, 1)))
	})

	t.Run("zero steps", func(t *testing.T) {
		m := NewETS()
		require.NoError(t, m.Fit(linearSeries(24, 10, 1)))
		_, err := m.Forecast(0)
		require.Error(t, err)
	})
}
