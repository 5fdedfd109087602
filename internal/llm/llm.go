// Package llm is the boundary to chat-completion language models.
package llm

import "context"

// Roles accepted by chat-completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion.
type Options struct {
	Temperature float64
	// JSON asks the provider to constrain the output to a JSON object.
	JSON bool
}

// Client produces one textual completion for a message sequence.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}
