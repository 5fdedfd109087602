// Package config loads the agent configuration from the environment.
//
// Loading order: a .env file is read if present (it never overrides the
// process environment), envconfig populates AppConfig from its struct tags,
// then go-playground/validator checks the result.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported values for WEATHER_PROVIDER and STORE_DRIVER.
const (
	ProviderOpenWeather = "openweather"
	ProviderWeatherAPI  = "weatherapi"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type AppConfig struct {
	Port     string `envconfig:"PORT" default:"8080" validate:"required"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	MistralAPIKey  string        `envconfig:"MISTRAL_API_KEY" validate:"required"`
	MistralModel   string        `envconfig:"MISTRAL_MODEL" default:"mistral-small-latest"`
	MistralBaseURL string        `envconfig:"MISTRAL_BASE_URL" validate:"omitempty,url"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"15s" validate:"gt=0"`

	WeatherProvider    string        `envconfig:"WEATHER_PROVIDER" default:"openweather" validate:"oneof=openweather weatherapi"`
	OpenWeatherAPIKey  string        `envconfig:"OPENWEATHER_API_KEY" validate:"required_if=WeatherProvider openweather"`
	OpenWeatherBaseURL string        `envconfig:"OPENWEATHER_BASE_URL" validate:"omitempty,url"`
	WeatherAPIKey      string        `envconfig:"WEATHERAPI_API_KEY" validate:"required_if=WeatherProvider weatherapi"`
	WeatherAPIBaseURL  string        `envconfig:"WEATHERAPI_BASE_URL" validate:"omitempty,url"`
	WeatherTimeout     time.Duration `envconfig:"WEATHER_TIMEOUT" default:"5s" validate:"gt=0"`

	// Conversation journal.
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres memory"`
	StoreDSN    string `envconfig:"STORE_DSN" default:"conversations.db" validate:"required_unless=StoreDriver memory"`

	// AdminToken enables GET /admin/conversations when set.
	AdminToken string `envconfig:"ADMIN_TOKEN" validate:"omitempty,min=16"`

	// RetentionPeriod of zero keeps journal entries forever.
	RetentionPeriod time.Duration `envconfig:"RETENTION_PERIOD" default:"720h" validate:"gte=0"`
	PurgeInterval   time.Duration `envconfig:"PURGE_INTERVAL" default:"1h" validate:"gte=0"`
}

// ErrorType categorizes configuration loading failures.
type ErrorType string

const (
	ErrParsing    ErrorType = "PARSING_FAILED"
	ErrValidation ErrorType = "VALIDATION_FAILED"
)

// ConfigError is returned by Load.
type ConfigError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv is Load without the .env step.
func FromEnv() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}

	cfg.WeatherProvider = strings.ToLower(strings.TrimSpace(cfg.WeatherProvider))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *AppConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
