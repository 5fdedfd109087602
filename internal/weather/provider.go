package weather

import "context"

// Provider abstracts a weather data source queried by city name
// (e.g. OpenWeatherMap, WeatherAPI).
//
// Both lookups return ErrNotFound when the city is unknown. Forecast
// implementations degrade any other failure to an empty slice.
type Provider interface {
	Name() string
	Current(ctx context.Context, city, language string) (Snapshot, error)
	Forecast(ctx context.Context, city, language string) ([]ForecastDay, error)
}
