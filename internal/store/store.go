// Package store persists the opt-in conversation journal.
package store

import (
	"context"
	"errors"
	"time"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 100

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("store is closed")

// LogEntry is one recorded exchange. Only exchanges the user consented to
// are ever written.
type LogEntry struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	UserMessage  string    `json:"userMessage"`
	AgentReply   string    `json:"agentReply"`
	ResolvedCity string    `json:"resolvedCity"`
}

// LogStore is an append-only journal with age-based retention.
type LogStore interface {
	// Append stores entry and returns its assigned id.
	Append(ctx context.Context, entry LogEntry) (int64, error)
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]LogEntry, error)
	// PurgeBefore deletes entries older than cutoff and reports how many.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
