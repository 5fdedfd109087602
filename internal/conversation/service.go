package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/meteo-agent/internal/store"
)

const defaultJournalTimeout = 5 * time.Second

// Responder answers one message. *Agent implements it.
type Responder interface {
	HandleMessage(ctx context.Context, message string, history []Turn) Result
}

// Stats are anonymous process-wide counters.
type Stats struct {
	TotalRequests int64 `json:"total_requests"`
}

// Service wraps a Responder with the request counter and the opt-in
// conversation journal.
type Service struct {
	responder Responder
	journal   store.LogStore
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	requests atomic.Int64
	pending  sync.WaitGroup
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the timestamp source of journal entries.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithJournalTimeout bounds each background journal write.
func WithJournalTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service. journal may be nil, in which case consented
// exchanges are not recorded.
func NewService(responder Responder, journal store.LogStore, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		responder: responder,
		journal:   journal,
		logger:    logger,
		timeout:   defaultJournalTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers req. When the user consented and the answer succeeded, the
// exchange is appended to the journal in the background; a journal failure
// never changes the returned Result.
func (s *Service) Chat(ctx context.Context, req Request) Result {
	res := s.responder.HandleMessage(ctx, req.Message, req.History)
	s.requests.Inc()

	if req.Consent && res.Success && s.journal != nil {
		entry := store.LogEntry{
			Timestamp:   s.now().UTC(),
			UserMessage: req.Message,
			AgentReply:  res.Message,
		}
		if res.Data != nil {
			entry.ResolvedCity = res.Data.City
		}
		s.record(entry)
	}
	return res
}

func (s *Service) record(entry store.LogEntry) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		id, err := s.journal.Append(ctx, entry)
		if err != nil {
			s.logger.Error("failed to record conversation", "city", entry.ResolvedCity, "error", err)
			return
		}
		s.logger.Debug("conversation recorded", "id", id, "city", entry.ResolvedCity)
	}()
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	return Stats{TotalRequests: s.requests.Load()}
}

// Wait blocks until pending journal writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}
