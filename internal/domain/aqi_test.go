package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPM25ToAQI_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		pm25     float64
		wantAQI  int
		category Category
	}{
		{"zero", 0, 0, CategoryGood},
		{"mid good", 12.5, 25, CategoryGood},
		{"good upper bound", 25, 50, CategoryGood},
		{"just above good", 25.5, 51, CategoryModerate},
		{"moderate upper bound", 50, 100, CategoryModerate},
		{"sensitive band", 70, 125, CategorySensitive},
		{"sensitive upper bound", 90, 150, CategorySensitive},
		{"unhealthy band", 120, 175, CategoryUnhealthy},
		{"unhealthy upper bound", 150, 200, CategoryUnhealthy},
		{"very unhealthy band", 200, 250, CategoryVeryUnhealthy},
		{"very unhealthy upper bound", 250, 300, CategoryVeryUnhealthy},
		{"hazardous band", 375, 400, CategoryHazardous},
		{"index cap", 500, 500, CategoryHazardous},
		{"beyond cap", 800, 500, CategoryHazardous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := PM25ToAQI(tt.pm25)
			assert.Equal(t, tt.wantAQI, info.AQI)
			assert.Equal(t, tt.category, info.Category)
		})
	}
}

func TestPM25ToAQI_InvalidInputs(t *testing.T) {
	t.Run("negative treated as zero", func(t *testing.T) {
		info := PM25ToAQI(-10)
		assert.Equal(t, 0, info.AQI)
		assert.Equal(t, CategoryGood, info.Category)
		assert.Equal(t, 0.0, info.PM25)
	})

	t.Run("NaN treated as zero", func(t *testing.T) {
		info := PM25ToAQI(math.NaN())
		assert.Equal(t, 0, info.AQI)
		assert.Equal(t, CategoryGood, info.Category)
	})
}

func TestPM25ToAQI_RoundsConcentration(t *testing.T) {
	info := PM25ToAQI(37.5678)
	assert.Equal(t, 37.57, info.PM25)
}

func TestPM25ToAQI_ColorsFollowCategory(t *testing.T) {
	assert.Equal(t, "#00E400", PM25ToAQI(10).Color)
	assert.Equal(t, "#FFFF00", PM25ToAQI(40).Color)
	assert.Equal(t, "#FF7E00", PM25ToAQI(70).Color)
	assert.Equal(t, "#FF0000", PM25ToAQI(120).Color)
	assert.Equal(t, "#8F3F97", PM25ToAQI(200).Color)
	assert.Equal(t, "#7E0023", PM25ToAQI(300).Color)
}

func TestPM25ToAQI_MonotoneNonDecreasing(t *testing.T) {
	prev := -1
	for pm := 0.0; pm <= 600; pm += 0.5 {
		aqi := PM25ToAQI(pm).AQI
		assert.GreaterOrEqual(t, aqi, prev, "AQI decreased at pm2.5=%.1f", pm)
		assert.LessOrEqual(t, aqi, 500)
		prev = aqi
	}
}

func TestAdvisoryFor(t *testing.T) {
	t.Run("every category has guidance", func(t *testing.T) {
		for _, c := range []Category{
			CategoryGood, CategoryModerate, CategorySensitive,
			CategoryUnhealthy, CategoryVeryUnhealthy, CategoryHazardous,
		} {
			a := AdvisoryFor(c)
			assert.Equal(t, c, a.Category)
			assert.NotEmpty(t, a.General)
			assert.NotEmpty(t, a.Sensitive)
			assert.NotEmpty(t, a.Actions)
		}
	})

	t.Run("unknown category falls back to good", func(t *testing.T) {
		a := AdvisoryFor(Category("Mystery"))
		assert.Equal(t, CategoryGood, a.Category)
	})
}
