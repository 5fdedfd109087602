// Package conversation turns a free-text weather question into a uniform
// Result: intent extraction, weather lookup and reply composition, with a
// fallback at every step.
package conversation

import "github.com/i474232898/meteo-agent/internal/weather"

// DefaultLanguage is used whenever no usable language tag was detected.
const DefaultLanguage = "fr"

// User-facing fallback messages.
const (
	MsgClarify        = "Sorry, I didn't understand — which city?"
	MsgNoCity         = "I didn't understand. Could you give me a city name?"
	MsgCityNotFoundF  = "Sorry, I can't find the city '%s'. Could you check the spelling?"
	MsgTechnicalIssue = "Sorry, I'm having a technical issue. Please try again shortly."
	msgComposedF      = "In %s, it is %s°C with %s."
)

// Turn is one prior exchange supplied by the caller as session context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractionKind tags the outcome of intent extraction.
type ExtractionKind int

const (
	// ExtractionFailed means the model call or its JSON could not be used.
	ExtractionFailed ExtractionKind = iota
	// NeedsCity means the model asked the user for a city.
	NeedsCity
	// CityFound means a city was identified.
	CityFound
	// Unresolved means valid JSON that matched neither expected shape.
	Unresolved
)

func (k ExtractionKind) String() string {
	switch k {
	case NeedsCity:
		return "needs_city"
	case CityFound:
		return "city_found"
	case Unresolved:
		return "unresolved"
	default:
		return "extraction_failed"
	}
}

// Extraction is the tagged result of one extraction call. Language is
// always set. City is only set for CityFound and Message only for
// NeedsCity and ExtractionFailed.
type Extraction struct {
	Kind     ExtractionKind
	City     string
	Message  string
	Language string
}

// Result is the single externally observable outcome of one message.
type Result struct {
	Success  bool                  `json:"success"`
	Message  string                `json:"message"`
	Language string                `json:"language"`
	Data     *weather.Snapshot     `json:"data,omitempty"`
	Forecast []weather.ForecastDay `json:"forecast,omitempty"`
}

// Request is one inbound chat message.
type Request struct {
	Message string
	History []Turn
	Consent bool
}
