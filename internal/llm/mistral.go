package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/i474232898/meteo-agent/internal/common"
)

const (
	DefaultMistralBaseURL = "https://api.mistral.ai/v1"
	DefaultMistralModel   = "mistral-small-latest"
)

var (
	errEmptyCompletion = errors.New("completion has no choices")
	errNoAPIKey        = errors.New("mistral api key is not configured")
)

// MistralClient calls Mistral's OpenAI-compatible chat completions endpoint
// through go-openai. Calls share one circuit breaker.
type MistralClient struct {
	apiKey   string
	model    string
	api      *openai.Client
	upstream *common.Upstream
}

// NewMistralClient creates a client. Empty model or baseURL fall back to
// the defaults.
func NewMistralClient(client *http.Client, apiKey, model, baseURL string) *MistralClient {
	if model == "" {
		model = DefaultMistralModel
	}
	if baseURL == "" {
		baseURL = DefaultMistralBaseURL
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	if client != nil {
		cfg.HTTPClient = client
	}

	return &MistralClient{
		apiKey:   apiKey,
		model:    model,
		api:      openai.NewClientWithConfig(cfg),
		upstream: common.NewUpstream("mistral", client),
	}
}

// Complete implements Client.
func (c *MistralClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if c.apiKey == "" {
		return "", errNoAPIKey
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var resp openai.ChatCompletionResponse
	err := c.upstream.Call(func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	}, func(err error) bool {
		return common.TripsOnStatus(statusCode(err))
	})
	if err != nil {
		return "", fmt.Errorf("mistral chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// statusCode extracts the HTTP status from a go-openai error, or 0 when the
// request never got an answer.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
