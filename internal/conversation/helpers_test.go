package conversation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/meteo-agent/internal/weather"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeProvider is a scripted weather.Provider.
type fakeProvider struct {
	current       weather.Snapshot
	currentErr    error
	currentPanic  bool
	forecast      []weather.ForecastDay
	forecastErr   error
	forecastPanic bool
	forecastDelay time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) Current(_ context.Context, city, language string) (weather.Snapshot, error) {
	f.record("current:" + city + ":" + language)
	if f.currentPanic {
		panic("current exploded")
	}
	return f.current, f.currentErr
}

func (f *fakeProvider) Forecast(ctx context.Context, city, language string) ([]weather.ForecastDay, error) {
	f.record("forecast:" + city + ":" + language)
	if f.forecastDelay > 0 {
		select {
		case <-time.After(f.forecastDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.forecastPanic {
		panic("forecast exploded")
	}
	return f.forecast, f.forecastErr
}

var parisSnapshot = weather.Snapshot{
	City:         "Paris",
	TemperatureC: 12,
	FeelsLikeC:   10.5,
	Description:  "clear sky",
	HumidityPct:  60,
	WindKph:      14.4,
}

var parisForecast = []weather.ForecastDay{
	{Date: "2026-03-02", TemperatureC: 14.2, Description: "cloudy", Icon: "03d"},
	{Date: "2026-03-03", TemperatureC: 9.8, Description: "light rain", Icon: "10d"},
}
