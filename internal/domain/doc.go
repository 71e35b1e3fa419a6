// Package domain models hourly air-quality and weather observations for the
// Hanoi (HUST station) nowcast.
//
// # Data Sources
//
// Historical and live readings come from the Open-Meteo air-quality and
// weather-archive APIs, fetched hourly per station coordinates. Optionally,
// on-site sensor readings arrive as flat JSON messages on a Kafka topic and
// are parsed by [ParseRawEvent]. All readings are keyed by their UTC hour.
//
// # Vietnamese AQI
//
// PM2.5 concentrations (µg/m³) map to the Vietnamese AQI scale by
// piecewise-linear interpolation over concentration breakpoints:
//
//	0-25    Good                             AQI 0-50
//	25-50   Moderate                         AQI 50-100
//	50-90   Unhealthy for Sensitive Groups   AQI 100-150
//	90-150  Unhealthy                        AQI 150-200
//	150-250 Very Unhealthy                   AQI 200-300
//	>250    Hazardous                        AQI 300-500 (capped)
//
// Each category carries a display color and health advisory text; see
// [PM25ToAQI] and [AdvisoryFor].
//
// # Alerts
//
// A forecast horizon produces at most one alert: "alert" when any forecast
// mean exceeds 90 µg/m³ (the Unhealthy boundary), "advisory" when the
// next-hour mean exceeds 50 µg/m³, otherwise none. See [DeriveAlert].
package domain
