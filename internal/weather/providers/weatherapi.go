package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/i474232898/meteo-agent/internal/common"
	"github.com/i474232898/meteo-agent/internal/weather"
)

const (
	weatherAPIBaseURL = "https://api.weatherapi.com/v1"

	// weatherAPINoLocation is WeatherAPI's error code for an unknown q.
	weatherAPINoLocation = 1006
	weatherAPIDays       = 5
)

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name     string
	apiKey   string
	baseURL  string
	upstream *common.Upstream
	logger   *slog.Logger
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	o := buildOptions(weatherAPIBaseURL, opts)
	return &WeatherAPIProvider{
		name:     "weatherapi",
		apiKey:   apiKey,
		baseURL:  o.baseURL,
		upstream: common.NewUpstream("weatherapi", client),
		logger:   o.logger,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type wapiCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type wapiCurrent struct {
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Current struct {
		TempC      float64       `json:"temp_c"`
		FeelsLikeC float64       `json:"feelslike_c"`
		Humidity   int           `json:"humidity"`
		WindKph    float64       `json:"wind_kph"`
		Condition  wapiCondition `json:"condition"`
	} `json:"current"`
}

type wapiForecast struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Hour []struct {
				Time      string        `json:"time"`
				TempC     float64       `json:"temp_c"`
				Condition wapiCondition `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type wapiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Current returns the current conditions for city. WeatherAPI already
// reports wind in km/h.
func (p *WeatherAPIProvider) Current(ctx context.Context, city, language string) (weather.Snapshot, error) {
	var payload wapiCurrent
	if err := p.get(ctx, "current.json", city, language, nil, &payload); err != nil {
		return weather.Snapshot{}, err
	}

	return weather.Snapshot{
		City:         payload.Location.Name,
		TemperatureC: weather.Round1(payload.Current.TempC),
		FeelsLikeC:   weather.Round1(payload.Current.FeelsLikeC),
		Description:  payload.Current.Condition.Text,
		HumidityPct:  payload.Current.Humidity,
		WindKph:      weather.Round1(payload.Current.WindKph),
	}, nil
}

// Forecast flattens the hourly forecast and applies the midday selection.
func (p *WeatherAPIProvider) Forecast(ctx context.Context, city, language string) ([]weather.ForecastDay, error) {
	extra := url.Values{}
	extra.Set("days", fmt.Sprint(weatherAPIDays))

	var payload wapiForecast
	if err := p.get(ctx, "forecast.json", city, language, extra, &payload); err != nil {
		if errors.Is(err, weather.ErrNotFound) {
			return nil, err
		}
		p.logger.Warn("forecast lookup failed", "provider", p.name, "city", city, "error", err)
		return []weather.ForecastDay{}, nil
	}

	var readings []weather.Reading
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			readings = append(readings, weather.Reading{
				LocalTime:    h.Time,
				TemperatureC: h.TempC,
				Description:  h.Condition.Text,
				Icon:         h.Condition.Icon,
			})
		}
	}
	return weather.SelectMiddayForecast(readings), nil
}

func (p *WeatherAPIProvider) get(ctx context.Context, endpoint, city, language string, extra url.Values, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", city)
	values.Set("lang", weatherAPILang(language))
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}

	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := p.upstream.Do(ctx, req)
	if err != nil {
		if isWeatherAPINotFound(err) {
			return weather.ErrNotFound
		}
		return fmt.Errorf("weatherapi %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weatherapi %s: decode: %w", endpoint, err)
	}
	return nil
}

// isWeatherAPINotFound reports whether err is the "No matching location
// found" answer, which WeatherAPI sends as a 400.
func isWeatherAPINotFound(err error) bool {
	var se *common.StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.Code == http.StatusNotFound {
		return true
	}
	if se.Code != http.StatusBadRequest {
		return false
	}
	var body wapiError
	if json.Unmarshal([]byte(se.Body), &body) != nil {
		return false
	}
	return body.Error.Code == weatherAPINoLocation
}
