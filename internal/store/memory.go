package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory LogStore. Contents are lost
// on restart.
type MemoryStore struct {
	mu sync.RWMutex

	entries []LogEntry
	nextID  int64
	closed  bool

	// maxEntries caps the journal; oldest entries are dropped first.
	maxEntries int
}

// NewMemoryStore creates a MemoryStore. If maxEntries is <= 0, it is
// treated as unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{maxEntries: maxEntries, nextID: 1}
}

// Append stores entry and enforces the entry cap.
func (s *MemoryStore) Append(ctx context.Context, entry LogEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		over := len(s.entries) - s.maxEntries
		s.entries = append([]LogEntry(nil), s.entries[over:]...)
	}
	return entry.ID, nil
}

// List returns up to limit entries, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]LogEntry, 0, min(limit, len(s.entries)))
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// PurgeBefore removes entries whose timestamp is strictly before cutoff.
func (s *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
