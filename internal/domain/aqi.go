package domain

import "math"

// Category is a Vietnamese AQI category label.
type Category string

// AQI categories, best to worst.
const (
	CategoryGood          Category = "Good"
	CategoryModerate      Category = "Moderate"
	CategorySensitive     Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy     Category = "Unhealthy"
	CategoryVeryUnhealthy Category = "Very Unhealthy"
	CategoryHazardous     Category = "Hazardous"
)

// PM2.5 concentration thresholds (µg/m³) between adjacent categories.
const (
	ThresholdGood          = 25.0
	ThresholdModerate      = 50.0
	ThresholdSensitive     = 90.0
	ThresholdUnhealthy     = 150.0
	ThresholdVeryUnhealthy = 250.0
)

// AQIInfo is the AQI classification of a single PM2.5 concentration.
type AQIInfo struct {
	PM25     float64  `json:"pm2_5"`
	AQI      int      `json:"aqi"`
	Category Category `json:"category"`
	Color    string   `json:"color"`
}

// aqiBand is one segment of the piecewise-linear concentration-to-index map.
type aqiBand struct {
	concHigh float64 // upper concentration bound (inclusive)
	concLow  float64
	aqiLow   float64 // index value at concLow
	slope    float64 // index units per µg/m³ within the band
	category Category
	color    string
}

var aqiBands = []aqiBand{
	{concHigh: ThresholdGood, concLow: 0, aqiLow: 0, slope: 50.0 / 25.0, category: CategoryGood, color: "#00E400"},
	{concHigh: ThresholdModerate, concLow: ThresholdGood, aqiLow: 50, slope: 50.0 / 25.0, category: CategoryModerate, color: "#FFFF00"},
	{concHigh: ThresholdSensitive, concLow: ThresholdModerate, aqiLow: 100, slope: 50.0 / 40.0, category: CategorySensitive, color: "#FF7E00"},
	{concHigh: ThresholdUnhealthy, concLow: ThresholdSensitive, aqiLow: 150, slope: 50.0 / 60.0, category: CategoryUnhealthy, color: "#FF0000"},
	{concHigh: ThresholdVeryUnhealthy, concLow: ThresholdUnhealthy, aqiLow: 200, slope: 100.0 / 100.0, category: CategoryVeryUnhealthy, color: "#8F3F97"},
}

// hazardousBand extends beyond 250 µg/m³; the excess above 500 µg/m³ is
// clamped so the index never exceeds 500.
var hazardousBand = aqiBand{
	concHigh: math.Inf(1), concLow: ThresholdVeryUnhealthy, aqiLow: 300,
	slope: 200.0 / 250.0, category: CategoryHazardous, color: "#7E0023",
}

// PM25ToAQI converts a PM2.5 concentration (µg/m³) to its Vietnamese AQI
// classification. Negative and NaN concentrations are treated as zero.
func PM25ToAQI(pm25 float64) AQIInfo {
	if math.IsNaN(pm25) || pm25 < 0 {
		pm25 = 0
	}

	band := hazardousBand
	for _, b := range aqiBands {
		if pm25 <= b.concHigh {
			band = b
			break
		}
	}

	excess := pm25 - band.concLow
	if band.category == CategoryHazardous {
		excess = math.Min(excess, 250)
	}
	aqi := int(band.aqiLow + band.slope*excess)
	if aqi > 500 {
		aqi = 500
	}

	return AQIInfo{
		PM25:     math.Round(pm25*100) / 100,
		AQI:      aqi,
		Category: band.category,
		Color:    band.color,
	}
}
