package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/meteo-agent/internal/llm"
	"github.com/i474232898/meteo-agent/internal/weather"
)

const (
	compositionTemperature = 0.7
	forecastSummaryDays    = 3
)

// Composer writes the natural-language reply for a weather lookup.
type Composer struct {
	llm     llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewComposer(client llm.Client, timeout time.Duration, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{llm: client, timeout: timeout, logger: logger}
}

// Compose never fails: on a model error or blank reply it returns a
// templated sentence.
func (c *Composer) Compose(ctx context.Context, snap weather.Snapshot, forecast []weather.ForecastDay) string {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: compositionPrompt(snap, forecast)},
	}, llm.Options{Temperature: compositionTemperature})
	if err != nil {
		c.logger.Warn("response composition failed", "city", snap.City, "error", err)
		return templateReply(snap)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		c.logger.Warn("response composition returned an empty reply", "city", snap.City)
		return templateReply(snap)
	}
	return reply
}

func templateReply(snap weather.Snapshot) string {
	return fmt.Sprintf(msgComposedF, snap.City, formatTemp(snap.TemperatureC), snap.Description)
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func compositionPrompt(snap weather.Snapshot, forecast []weather.ForecastDay) string {
	var b strings.Builder
	b.WriteString("Génère une réponse courte et sympathique (2 à 3 phrases maximum) pour ces données météo. ")
	b.WriteString("Réponds en français, quelle que soit la ville.\n\n")
	fmt.Fprintf(&b, "Ville : %s\n", snap.City)
	fmt.Fprintf(&b, "Température actuelle : %s°C (ressenti %s°C)\n", formatTemp(snap.TemperatureC), formatTemp(snap.FeelsLikeC))
	fmt.Fprintf(&b, "Conditions : %s\n", snap.Description)
	fmt.Fprintf(&b, "Humidité : %d%%\n", snap.HumidityPct)
	fmt.Fprintf(&b, "Vent : %s km/h\n", formatTemp(snap.WindKph))
	if summary := forecastSummary(forecast); summary != "" {
		fmt.Fprintf(&b, "Prévisions (%d jours) : %s\n", forecastSummaryDays, summary)
	}
	b.WriteString("\nConsignes :\n")
	b.WriteString("- Sois naturel et conversationnel.\n")
	b.WriteString("- Donne un conseil pratique (vêtements, parapluie...) d'après la météo actuelle et les prévisions.\n")
	b.WriteString("- Reste concis.")
	return b.String()
}

// forecastSummary renders the first days as "Le MM-DD : T°C avec desc",
// joined by " | ".
func forecastSummary(forecast []weather.ForecastDay) string {
	n := min(len(forecast), forecastSummaryDays)
	parts := make([]string, 0, n)
	for _, d := range forecast[:n] {
		day := d.Date
		if len(day) == len("2006-01-02") {
			day = day[5:]
		}
		parts = append(parts, fmt.Sprintf("Le %s : %s°C avec %s", day, formatTemp(d.TemperatureC), d.Description))
	}
	return strings.Join(parts, " | ")
}
