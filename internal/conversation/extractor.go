package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/meteo-agent/internal/llm"
)

const (
	extractionTemperature = 0.3
	actionAskCity         = "demander_ville"
)

const extractionPrompt = `Tu es un assistant météo automatique, sympathique et concis.

Règles de confidentialité :
- Présente-toi comme un agent conversationnel automatique.
- Les données de l'utilisateur ne sont pas conservées, sauf consentement explicite.
- Ne collecte que le strict nécessaire : le nom de la ville.

Ta tâche :
1. Identifier la ville dont parle l'utilisateur, en tenant compte de l'historique.
2. Si aucune ville n'est mentionnée, demander poliment laquelle.
3. Détecter la langue de l'utilisateur sous forme de code BCP-47 (ex. "fr", "en", "es").
4. Ne jamais inventer de données météo.

Réponds uniquement en JSON, sous l'une de ces deux formes :
- ville trouvée : {"city": "nom_de_la_ville", "language": "fr"}
- pas de ville : {"action": "demander_ville", "message": "ta question", "language": "fr"}`

var errNotObject = errors.New("extraction reply is not a JSON object")

// Extractor infers the city and language of a message with a language model.
type Extractor struct {
	llm     llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor creates an Extractor. A zero timeout disables the per-call
// deadline.
func NewExtractor(client llm.Client, timeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: client, timeout: timeout, logger: logger}
}

// Extract never fails: model or parsing errors, and a panicking model
// client, become ExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, message string, history []Turn) (ex Extraction) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("intent extraction panicked", "panic", r)
			ex = failedExtraction()
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reply, err := e.llm.Complete(ctx, buildExtractionMessages(message, history), llm.Options{
		Temperature: extractionTemperature,
		JSON:        true,
	})
	if err != nil {
		e.logger.Warn("intent extraction call failed", "error", err)
		return failedExtraction()
	}

	parsed, err := parseExtraction(reply)
	if err != nil {
		e.logger.Warn("intent extraction reply unusable", "error", err)
		return failedExtraction()
	}
	return parsed
}

func failedExtraction() Extraction {
	return Extraction{Kind: ExtractionFailed, Message: MsgClarify, Language: DefaultLanguage}
}

// buildExtractionMessages prepends the instruction and keeps only
// well-formed history turns. The input slice is not modified.
func buildExtractionMessages(message string, history []Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: extractionPrompt})
	for _, t := range history {
		if !wellFormed(t) {
			continue
		}
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

func wellFormed(t Turn) bool {
	if t.Content == "" {
		return false
	}
	switch t.Role {
	case llm.RoleUser, llm.RoleAssistant, llm.RoleSystem:
		return true
	}
	return false
}

// parseExtraction decodes the model reply. A recognized action wins over a
// city key; legacy "ville"/"langue" keys are accepted.
func parseExtraction(reply string) (Extraction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply), &fields); err != nil {
		return Extraction{}, err
	}
	if fields == nil {
		return Extraction{}, errNotObject
	}

	lang := normalizeLanguage(stringField(fields, "language", "langue"))

	if strings.TrimSpace(stringField(fields, "action")) == actionAskCity {
		return Extraction{
			Kind:     NeedsCity,
			Message:  strings.TrimSpace(stringField(fields, "message")),
			Language: lang,
		}, nil
	}

	if city := strings.TrimSpace(stringField(fields, "city", "ville")); city != "" {
		return Extraction{Kind: CityFound, City: city, Language: lang}, nil
	}

	return Extraction{Kind: Unresolved, Language: lang}, nil
}

// stringField returns the first key holding a JSON string.
func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return ""
}
