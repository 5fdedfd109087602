package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrStubExhausted is returned once a StubClient has no scripted reply left.
var ErrStubExhausted = errors.New("stub: no scripted reply left")

// StubReply is one scripted outcome of a StubClient call.
type StubReply struct {
	Text string
	Err  error
}

// StubCall records the input of one Complete call.
type StubCall struct {
	Messages []Message
	Options  Options
}

// StubClient is a deterministic Client that answers from a script in call
// order and records every call. It is safe for concurrent use.
type StubClient struct {
	mu      sync.Mutex
	replies []StubReply
	calls   []StubCall
}

// NewStubClient returns a stub that will answer with replies in order.
func NewStubClient(replies ...StubReply) *StubClient {
	return &StubClient{replies: replies}
}

// Complete implements Client.
func (s *StubClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, StubCall{
		Messages: append([]Message(nil), messages...),
		Options:  opts,
	})

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.replies) == 0 {
		return "", ErrStubExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Calls returns a copy of the recorded calls.
func (s *StubClient) Calls() []StubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StubCall(nil), s.calls...)
}
