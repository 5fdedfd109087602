package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"github.com/i474232898/meteo-agent/internal/conversation"
	"github.com/i474232898/meteo-agent/internal/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "meteo-agent"

const healthTimeout = 2 * time.Second

var validate = validator.New()

// ChatService answers chat messages and exposes counters.
type ChatService interface {
	Chat(ctx context.Context, req conversation.Request) conversation.Result
	Stats() conversation.Stats
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. health may be
// nil when no journal store is configured.
func RegisterRoutes(app *fiber.App, svc ChatService, health Pinger, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	app.Post("/chat", func(c *fiber.Ctx) error {
		var body chatBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		req := body.toRequest()
		if err := validate.Struct(chatInput{Message: req.Message}); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "empty message")
		}

		res := svc.Chat(c.UserContext(), req)
		logger.Info("chat handled",
			"request_id", requestID(c),
			"success", res.Success,
			"language", res.Language,
			"history_turns", len(req.History),
			"consent", req.Consent,
		)
		return c.JSON(res)
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(svc.Stats())
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		if health != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				logger.Warn("health check failed", "request_id", requestID(c), "error", err)
				status = "degraded"
			}
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"service": ServiceName,
		})
	})
}

// JournalReader lists recorded conversations, newest first.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]store.LogEntry, error)
}

// RegisterAdminRoutes exposes the consented conversation journal under
// /admin, behind a bearer token. Nothing is registered for an empty token.
func RegisterAdminRoutes(app *fiber.App, journal JournalReader, token string) {
	if token == "" || journal == nil {
		return
	}

	admin := app.Group("/admin", keyauth.New(keyauth.Config{
		Validator: func(_ *fiber.Ctx, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
	}))

	admin.Get("/conversations", func(c *fiber.Ctx) error {
		q := listQuery{Limit: c.QueryInt("limit", store.DefaultListLimit)}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
		}

		entries, err := journal.List(c.UserContext(), q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list conversations")
		}
		return c.JSON(fiber.Map{"conversations": entries})
	})
}

type listQuery struct {
	Limit int `validate:"min=1,max=500"`
}

// chatBody is the raw POST /chat payload. History entries are kept raw so
// that one malformed turn does not reject the whole request.
type chatBody struct {
	Message string            `json:"message"`
	History []json.RawMessage `json:"history"`
	Consent bool              `json:"consent"`
}

// chatInput holds the validated fields of a chat request.
type chatInput struct {
	Message string `validate:"required"`
}

func (b chatBody) toRequest() conversation.Request {
	req := conversation.Request{
		Message: strings.TrimSpace(b.Message),
		Consent: b.Consent,
	}
	for _, raw := range b.History {
		var t conversation.Turn
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		req.History = append(req.History, t)
	}
	return req
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
