// Package timeseries provides the hourly series container shared by the
// forecasting models and the nowcast orchestration.
package timeseries

import (
	"errors"
	"math"
	"time"
)

// Series is an hourly time series. Timestamps and Values always have the
// same length; gaps in the source data appear as NaN values.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New creates a series from explicit timestamps and values.
func New(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, errors.New("timestamps and values must have the same length")
	}
	return &Series{Timestamps: timestamps, Values: values}, nil
}

// FromValues creates a series with synthetic hourly timestamps starting at
// start. Used by tests and model-internal working series.
func FromValues(start time.Time, values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	for i := range timestamps {
		timestamps[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return &Series{Timestamps: timestamps, Values: values}
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Values)
}

// Last returns the final timestamp and value. The second return is false for
// an empty series.
func (s *Series) Last() (time.Time, float64, bool) {
	if len(s.Values) == 0 {
		return time.Time{}, 0, false
	}
	i := len(s.Values) - 1
	return s.Timestamps[i], s.Values[i], true
}

// Mean calculates the arithmetic mean, ignoring NaN values.
func (s *Series) Mean() float64 {
	sum, n := 0.0, 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Variance calculates the sample variance, ignoring NaN values.
func (s *Series) Variance() float64 {
	mean := s.Mean()
	sumSq, n := 0.0, 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		diff := v - mean
		sumSq += diff * diff
		n++
	}
	if n < 2 {
		return 0
	}
	return sumSq / float64(n-1)
}

// Std calculates the sample standard deviation.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Min returns the smallest observed value, ignoring NaN. NaN when the series
// has no observations.
func (s *Series) Min() float64 {
	min := math.NaN()
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest observed value, ignoring NaN. NaN when the series
// has no observations.
func (s *Series) Max() float64 {
	max := math.NaN()
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return max
}

// Diff calculates the first difference of the series.
func (s *Series) Diff() *Series {
	return s.DiffN(1)
}

// DiffN calculates the n-th order lagged difference of the series.
func (s *Series) DiffN(n int) *Series {
	if n <= 0 || len(s.Values) <= n {
		return &Series{Name: s.Name}
	}

	values := make([]float64, len(s.Values)-n)
	timestamps := make([]time.Time, len(values))
	for i := n; i < len(s.Values); i++ {
		values[i-n] = s.Values[i] - s.Values[i-n]
		timestamps[i-n] = s.Timestamps[i]
	}
	return &Series{Timestamps: timestamps, Values: values, Name: s.Name}
}

// Lag returns the series shifted by n periods: the value at each timestamp
// is the observation n hours earlier. The first n timestamps are dropped.
func (s *Series) Lag(n int) *Series {
	if n <= 0 || len(s.Values) <= n {
		return &Series{Name: s.Name}
	}

	values := make([]float64, len(s.Values)-n)
	copy(values, s.Values[:len(s.Values)-n])
	timestamps := make([]time.Time, len(values))
	copy(timestamps, s.Timestamps[n:])
	return &Series{Timestamps: timestamps, Values: values, Name: s.Name}
}

// Tail returns the last n observations (the whole series when n exceeds its
// length).
func (s *Series) Tail(n int) *Series {
	if n >= len(s.Values) {
		return s.Copy()
	}
	if n <= 0 {
		return &Series{Name: s.Name}
	}
	return s.Slice(len(s.Values)-n, len(s.Values))
}

// Slice returns a copy of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])
	timestamps := make([]time.Time, end-start)
	copy(timestamps, s.Timestamps[start:end])
	return &Series{Timestamps: timestamps, Values: values, Name: s.Name}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	timestamps := make([]time.Time, len(s.Timestamps))
	copy(timestamps, s.Timestamps)
	return &Series{Timestamps: timestamps, Values: values, Name: s.Name}
}

// Interpolate fills interior NaN runs by linear interpolation between the
// surrounding observed values. Leading and trailing NaN values are left in
// place; use TrimNaN to drop them.
func (s *Series) Interpolate() *Series {
	out := s.Copy()
	n := len(out.Values)

	prev := -1 // index of last observed value
	for i := 0; i < n; i++ {
		if math.IsNaN(out.Values[i]) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			gap := float64(i - prev)
			step := (out.Values[i] - out.Values[prev]) / gap
			for j := prev + 1; j < i; j++ {
				out.Values[j] = out.Values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	return out
}

// TrimNaN drops leading and trailing NaN observations.
func (s *Series) TrimNaN() *Series {
	start, end := 0, len(s.Values)
	for start < end && math.IsNaN(s.Values[start]) {
		start++
	}
	for end > start && math.IsNaN(s.Values[end-1]) {
		end--
	}
	return s.Slice(start, end)
}

// HasNaN reports whether any observation is NaN.
func (s *Series) HasNaN() bool {
	for _, v := range s.Values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Align merges series onto the timestamp index of the first one. Values
// missing from a later series at an index timestamp become NaN. Returns an
// error when called with no series.
func Align(series ...*Series) ([]*Series, error) {
	if len(series) == 0 {
		return nil, errors.New("align requires at least one series")
	}

	index := series[0].Timestamps
	out := make([]*Series, len(series))
	out[0] = series[0].Copy()

	for si := 1; si < len(series); si++ {
		lookup := make(map[time.Time]float64, series[si].Len())
		for i, ts := range series[si].Timestamps {
			lookup[ts.UTC()] = series[si].Values[i]
		}

		values := make([]float64, len(index))
		timestamps := make([]time.Time, len(index))
		for i, ts := range index {
			timestamps[i] = ts
			if v, ok := lookup[ts.UTC()]; ok {
				values[i] = v
			} else {
				values[i] = math.NaN()
			}
		}
		out[si] = &Series{Timestamps: timestamps, Values: values, Name: series[si].Name}
	}
	return out, nil
}
