package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/meteo-agent/internal/api/http"
	"github.com/i474232898/meteo-agent/internal/config"
	"github.com/i474232898/meteo-agent/internal/conversation"
	"github.com/i474232898/meteo-agent/internal/llm"
	"github.com/i474232898/meteo-agent/internal/scheduler"
	"github.com/i474232898/meteo-agent/internal/store"
	"github.com/i474232898/meteo-agent/internal/weather"
	"github.com/i474232898/meteo-agent/internal/weather/providers"
)

// memoryStoreCap bounds the journal when STORE_DRIVER=memory.
const memoryStoreCap = 10000

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("meteo-agent stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails. Everything it
// opens is closed before it returns.
func run(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	// Outbound clients carry their own timeouts.
	weatherClient := &http.Client{Timeout: cfg.WeatherTimeout}
	llmClient := &http.Client{Timeout: cfg.LLMTimeout}

	provider := newProvider(cfg, weatherClient, log)
	model := llm.NewMistralClient(llmClient, cfg.MistralAPIKey, cfg.MistralModel, cfg.MistralBaseURL)

	startupCtx, cancelStartup := context.WithTimeout(ctx, 10*time.Second)
	journal, err := openStore(startupCtx, cfg, log)
	cancelStartup()
	if err != nil {
		return fmt.Errorf("open %s conversation store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Error("failed to close conversation store", "error", err)
		}
	}()

	agent := conversation.NewAgent(conversation.Config{
		LLM:            model,
		Weather:        provider,
		LLMTimeout:     cfg.LLMTimeout,
		WeatherTimeout: cfg.WeatherTimeout,
		Logger:         log,
	})
	svc := conversation.NewService(agent, journal, log)
	defer svc.Wait()

	sched := scheduler.New(journal, cfg.RetentionPeriod, cfg.PurgeInterval, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := newApp(cfg, svc, journal, log)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.Port, "provider", provider.Name(), "store", cfg.StoreDriver)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return nil
}

func newApp(cfg *config.AppConfig, svc *conversation.Service, journal store.LogStore, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               httpapi.ServiceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A chat request may wait on two model calls plus the weather lookup.
		WriteTimeout: 2*cfg.LLMTimeout + cfg.WeatherTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, svc, journal, log)
	httpapi.RegisterAdminRoutes(app, journal, cfg.AdminToken)
	return app
}

func newProvider(cfg *config.AppConfig, client *http.Client, log *slog.Logger) weather.Provider {
	switch cfg.WeatherProvider {
	case config.ProviderWeatherAPI:
		return providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey,
			providers.WithBaseURL(cfg.WeatherAPIBaseURL), providers.WithLogger(log))
	default:
		return providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey,
			providers.WithBaseURL(cfg.OpenWeatherBaseURL), providers.WithLogger(log))
	}
}

func openStore(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (store.LogStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemoryStore(memoryStoreCap), nil
	case config.DriverPostgres:
		s, err := store.OpenPostgres(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := store.OpenSQLite(ctx, cfg.StoreDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
