// Package llmtest provides CompletionService stubs for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// ErrExhausted is returned once every scripted reply has been used.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Reply is one canned answer.
type Reply struct {
	Text   string
	Chunks []string
	Err    error
}

// Text returns a reply that answers with s.
func Text(s string) Reply { return Reply{Text: s} }

// Chunks returns a reply that streams parts in order.
func Chunks(parts ...string) Reply { return Reply{Chunks: parts} }

// Fail returns a reply that fails with err.
func Fail(err error) Reply { return Reply{Err: err} }

// Call records one request made to the stub.
type Call struct {
	Streamed bool
	Messages schema.Messages
}

// Scripted answers requests with canned replies in order, whether they
// arrive through Complete or Stream.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// New returns a stub that will hand out replies in order.
func New(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Push appends more replies to the script.
func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

func (s *Scripted) next(streamed bool, msgs schema.Messages) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Streamed: streamed, Messages: msgs.Clone()})
	if len(s.replies) == 0 {
		return Reply{}, ErrExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, r.Err
}

func (s *Scripted) Complete(ctx context.Context, msgs schema.Messages) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, err := s.next(false, msgs)
	if err != nil {
		return "", err
	}
	if r.Chunks != nil {
		return strings.Join(r.Chunks, ""), nil
	}
	return r.Text, nil
}

func (s *Scripted) Stream(ctx context.Context, msgs schema.Messages) (*schema.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.next(true, msgs)
	if err != nil {
		return nil, err
	}
	if r.Chunks != nil {
		return schema.StreamOf(r.Chunks...), nil
	}
	return schema.StreamOf(r.Text), nil
}

// Calls returns every request seen so far.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Remaining returns how many scripted replies are unused.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// Func adapts a function into a CompletionService; both methods call it.
type Func func(ctx context.Context, msgs schema.Messages) (string, error)

func (f Func) Complete(ctx context.Context, msgs schema.Messages) (string, error) {
	return f(ctx, msgs)
}

func (f Func) Stream(ctx context.Context, msgs schema.Messages) (*schema.Stream, error) {
	text, err := f(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return schema.StreamOf(text), nil
}
