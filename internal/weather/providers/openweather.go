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

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap's
// current weather and 5 day / 3 hour forecast endpoints.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	baseURL  string
	upstream *common.Upstream
	logger   *slog.Logger
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	o := buildOptions(openWeatherBaseURL, opts)
	return &OpenWeatherProvider{
		name:     "openweathermap",
		apiKey:   apiKey,
		baseURL:  o.baseURL,
		upstream: common.NewUpstream("openweather", client),
		logger:   o.logger,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmCurrent struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []owmCondition `json:"weather"`
}

type owmForecast struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []owmCondition `json:"weather"`
	} `json:"list"`
}

// Current returns the current conditions for city. Wind is converted from
// m/s to km/h.
func (p *OpenWeatherProvider) Current(ctx context.Context, city, language string) (weather.Snapshot, error) {
	var payload owmCurrent
	if err := p.get(ctx, "weather", city, language, &payload); err != nil {
		return weather.Snapshot{}, err
	}

	var cond owmCondition
	if len(payload.Weather) > 0 {
		cond = payload.Weather[0]
	}

	return weather.Snapshot{
		City:         payload.Name,
		TemperatureC: weather.Round1(payload.Main.Temp),
		FeelsLikeC:   weather.Round1(payload.Main.FeelsLike),
		Description:  cond.Description,
		HumidityPct:  payload.Main.Humidity,
		WindKph:      weather.MSToKph(payload.Wind.Speed),
	}, nil
}

// Forecast returns one reading per day around midday. Only ErrNotFound is
// surfaced; other failures yield an empty forecast.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, city, language string) ([]weather.ForecastDay, error) {
	var payload owmForecast
	if err := p.get(ctx, "forecast", city, language, &payload); err != nil {
		if errors.Is(err, weather.ErrNotFound) {
			return nil, err
		}
		p.logger.Warn("forecast lookup failed", "provider", p.name, "city", city, "error", err)
		return []weather.ForecastDay{}, nil
	}

	readings := make([]weather.Reading, 0, len(payload.List))
	for _, item := range payload.List {
		var cond owmCondition
		if len(item.Weather) > 0 {
			cond = item.Weather[0]
		}
		readings = append(readings, weather.Reading{
			LocalTime:    item.DtTxt,
			TemperatureC: item.Main.Temp,
			Description:  cond.Description,
			Icon:         cond.Icon,
		})
	}
	return weather.SelectMiddayForecast(readings), nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint, city, language string, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lang", openWeatherLang(language))

	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := p.upstream.Do(ctx, req)
	if err != nil {
		if common.StatusCode(err) == http.StatusNotFound {
			return weather.ErrNotFound
		}
		return fmt.Errorf("openweather %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openweather %s: decode: %w", endpoint, err)
	}
	return nil
}
