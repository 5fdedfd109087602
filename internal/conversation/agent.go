package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/meteo-agent/internal/llm"
	"github.com/i474232898/meteo-agent/internal/weather"
)

const (
	DefaultLLMTimeout     = 15 * time.Second
	DefaultWeatherTimeout = 5 * time.Second
)

var errPanic = errors.New("recovered panic")

// IntentExtractor infers city and language from a message.
type IntentExtractor interface {
	Extract(ctx context.Context, message string, history []Turn) Extraction
}

// ResponseComposer writes the reply for a successful lookup.
type ResponseComposer interface {
	Compose(ctx context.Context, snap weather.Snapshot, forecast []weather.ForecastDay) string
}

// Config wires an Agent. Extractor and Composer default to the LLM-backed
// implementations built from LLM.
type Config struct {
	LLM            llm.Client
	Weather        weather.Provider
	Extractor      IntentExtractor
	Composer       ResponseComposer
	LLMTimeout     time.Duration
	WeatherTimeout time.Duration
	Logger         *slog.Logger
}

// Agent is the conversation orchestrator:
// extraction -> weather lookup (current + forecast) -> composition.
// It holds no per-request state and is safe for concurrent use.
type Agent struct {
	extractor      IntentExtractor
	composer       ResponseComposer
	weather        weather.Provider
	weatherTimeout time.Duration
	logger         *slog.Logger
}

// NewAgent creates an Agent from cfg.
func NewAgent(cfg Config) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	llmTimeout := cfg.LLMTimeout
	if llmTimeout <= 0 {
		llmTimeout = DefaultLLMTimeout
	}
	weatherTimeout := cfg.WeatherTimeout
	if weatherTimeout <= 0 {
		weatherTimeout = DefaultWeatherTimeout
	}

	a := &Agent{
		extractor:      cfg.Extractor,
		composer:       cfg.Composer,
		weather:        cfg.Weather,
		weatherTimeout: weatherTimeout,
		logger:         logger,
	}
	if a.extractor == nil {
		a.extractor = NewExtractor(cfg.LLM, llmTimeout, logger)
	}
	if a.composer == nil {
		a.composer = NewComposer(cfg.LLM, llmTimeout, logger)
	}
	return a
}

// HandleMessage processes one user message. It always returns a well-formed
// Result with a non-empty Language; failures are reported through
// Success=false and a user-facing Message.
func (a *Agent) HandleMessage(ctx context.Context, message string, history []Turn) Result {
	ex := a.extractor.Extract(ctx, message, history)
	lang := ex.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	switch ex.Kind {
	case NeedsCity:
		msg := ex.Message
		if msg == "" {
			msg = MsgClarify
		}
		return Result{Success: false, Message: msg, Language: lang}
	case CityFound:
		return a.answer(ctx, ex.City, lang)
	case Unresolved:
		return Result{Success: false, Message: MsgNoCity, Language: lang}
	default:
		return Result{Success: false, Message: MsgClarify, Language: lang}
	}
}

// answer covers the lookup and composition states. Any unexpected failure,
// including a panic, ends in the technical-issue reply.
func (a *Agent) answer(ctx context.Context, city, lang string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("conversation panicked", "city", city, "language", lang, "panic", r)
			res = technicalIssue(lang)
		}
	}()

	snap, forecast, err := a.lookup(ctx, city, lang)
	switch {
	case errors.Is(err, weather.ErrNotFound):
		a.logger.Info("city not found", "city", city, "language", lang)
		return Result{Success: false, Message: fmt.Sprintf(MsgCityNotFoundF, city), Language: lang}
	case err != nil:
		a.logger.Error("weather lookup failed", "city", city, "language", lang, "error", err)
		return technicalIssue(lang)
	}

	reply := a.composer.Compose(ctx, snap, forecast)
	return Result{
		Success:  true,
		Message:  reply,
		Language: lang,
		Data:     &snap,
		Forecast: forecast,
	}
}

// lookup fetches current weather and forecast concurrently. Only the
// current lookup can fail the call; forecast problems yield no forecast.
// The reply waits for the forecast at most weatherTimeout; a forecast still
// pending at that deadline is dropped.
func (a *Agent) lookup(ctx context.Context, city, lang string) (weather.Snapshot, []weather.ForecastDay, error) {
	var (
		snap     weather.Snapshot
		forecast []weather.ForecastDay
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(guard(func() error {
		cctx, cancel := context.WithTimeout(gctx, a.weatherTimeout)
		defer cancel()

		s, err := a.weather.Current(cctx, city, lang)
		if err != nil {
			return err
		}
		snap = s
		return nil
	}))

	g.Go(func() error {
		err := guard(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.weatherTimeout)
			defer cancel()

			days, err := a.weather.Forecast(fctx, city, lang)
			if err != nil {
				return err
			}
			forecast = days
			return nil
		})()
		if err != nil && !errors.Is(err, weather.ErrNotFound) {
			a.logger.Warn("forecast unavailable", "city", city, "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return weather.Snapshot{}, nil, err
	}
	return snap, forecast, nil
}

// guard converts a panic in fn into an error.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errPanic, r)
			}
		}()
		return fn()
	}
}

func technicalIssue(lang string) Result {
	return Result{Success: false, Message: MsgTechnicalIssue, Language: lang}
}
