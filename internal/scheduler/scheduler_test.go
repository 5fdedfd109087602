package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/meteo-agent/internal/store"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingPurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *recordingPurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 1, p.err
}

func (p *recordingPurger) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestRunOnce_UsesRetentionCutoff(t *testing.T) {
	p := &recordingPurger{}
	s := New(p, 720*time.Hour, time.Hour, discardLogger)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, now.Add(-720*time.Hour), p.cutoffs[0])
}

func TestRunOnce_Error(t *testing.T) {
	p := &recordingPurger{err: errors.New("disk full")}
	s := New(p, time.Hour, time.Hour, discardLogger)

	_, err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "disk full")
}

func TestStart_DisabledWhenRetentionZero(t *testing.T) {
	p := &recordingPurger{}
	s := New(p, 0, time.Hour, discardLogger)

	require.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, p.calls())
}

func TestStart_PurgesMemoryStore(t *testing.T) {
	ms := store.NewMemoryStore(0)
	ctx := context.Background()
	_, err := ms.Append(ctx, store.LogEntry{Timestamp: time.Now().Add(-48 * time.Hour), ResolvedCity: "Paris"})
	require.NoError(t, err)
	_, err = ms.Append(ctx, store.LogEntry{Timestamp: time.Now(), ResolvedCity: "Lyon"})
	require.NoError(t, err)

	s := New(ms, 24*time.Hour, time.Hour, discardLogger)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		got, err := ms.List(ctx, 0)
		return err == nil && len(got) == 1 && got[0].ResolvedCity == "Lyon"
	}, 2*time.Second, 10*time.Millisecond)
}
