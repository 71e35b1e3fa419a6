package domain

import "time"

// AlertLevel classifies the severity of a forecast alert.
type AlertLevel string

const (
	AlertNone      AlertLevel = "none"
	AlertAdvisory  AlertLevel = "advisory"
	AlertUnhealthy AlertLevel = "alert"
)

// Alert summarizes forecast-driven air-quality warnings for the station.
type Alert struct {
	Level      AlertLevel `json:"level"`
	Message    string     `json:"message,omitempty"`
	HoursAhead int        `json:"hours_ahead,omitempty"` // hours until first exceedance
	PeakPM25   float64    `json:"peak_pm2_5,omitempty"`
	Peak       AQIInfo    `json:"peak_aqi,omitempty"`
	IssuedAt   time.Time  `json:"issued_at"`
}

// DeriveAlert scans forecast PM2.5 means (index 0 = one hour ahead) and
// returns the alert for the horizon: "alert" when any hour exceeds the
// Unhealthy boundary (90 µg/m³), "advisory" when the next hour exceeds the
// Moderate boundary (50 µg/m³), otherwise none.
func DeriveAlert(means []float64) Alert {
	alert := Alert{Level: AlertNone, IssuedAt: clock.Now().UTC()}
	if len(means) == 0 {
		return alert
	}

	firstExceed := -1
	peak := 0.0
	for i, v := range means {
		if v > ThresholdSensitive {
			if firstExceed < 0 {
				firstExceed = i
			}
			if v > peak {
				peak = v
			}
		}
	}

	if firstExceed >= 0 {
		alert.Level = AlertUnhealthy
		alert.HoursAhead = firstExceed + 1
		alert.PeakPM25 = peak
		alert.Peak = PM25ToAQI(peak)
		alert.Message = "Unhealthy air quality expected. Plan indoor activities."
		return alert
	}

	if means[0] > ThresholdModerate {
		alert.Level = AlertAdvisory
		alert.HoursAhead = 1
		alert.PeakPM25 = means[0]
		alert.Peak = PM25ToAQI(means[0])
		alert.Message = "Air quality may affect sensitive groups in the next hour."
	}
	return alert
}
