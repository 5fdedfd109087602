package weather

import (
	"errors"
	"math"
)

// ErrNotFound is returned by providers when the requested city is unknown
// upstream. It is an expected outcome, not a retrieval failure.
var ErrNotFound = errors.New("city not found")

// Snapshot is the normalized current weather for a city.
// Wind speed is expressed in km/h; all floats are rounded to one decimal.
type Snapshot struct {
	City         string  `json:"city"`
	TemperatureC float64 `json:"temperatureC"`
	FeelsLikeC   float64 `json:"feelsLikeC"`
	Description  string  `json:"description"`
	HumidityPct  int     `json:"humidityPct"`
	WindKph      float64 `json:"windKph"`
}

// ForecastDay is the representative reading of one calendar day.
type ForecastDay struct {
	Date         string  `json:"date"` // YYYY-MM-DD
	TemperatureC float64 `json:"temperatureC"`
	Description  string  `json:"description"`
	Icon         string  `json:"icon"`
}

// Reading is a single timestamped entry of a multi-day forecast feed,
// before the one-per-day selection is applied.
type Reading struct {
	// LocalTime is the provider label, "YYYY-MM-DD HH:MM[:SS]".
	LocalTime    string
	TemperatureC float64
	Description  string
	Icon         string
}

const msToKph = 3.6

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// MSToKph converts a wind speed in m/s to km/h rounded to one decimal.
func MSToKph(ms float64) float64 {
	return Round1(ms * msToKph)
}
