package session

import (
	"context"
	"sync"
	"time"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// Context is the routing state of one conversation.
type Context struct {
	LastToolName   string // "" when no tool has run yet
	LastToolResult string
	IsFirstTurn    bool
}

// HasLastTool reports whether a previous turn recorded a tool.
func (c Context) HasLastTool() bool { return c.LastToolName != "" }

// Turn is everything one resolved turn contributes to a session. It is
// applied in a single Commit, so an abandoned turn leaves no trace.
type Turn struct {
	System    string // system prompt sent with this turn, placed first in history
	User      string
	Assistant string

	// RecordTool replaces LastToolName/LastToolResult with Tool/ToolResult.
	RecordTool bool
	Tool       string
	ToolResult string

	// ConsumesFirstTurn clears IsFirstTurn.
	ConsumesFirstTurn bool
}

// Session holds one conversation's history and routing context.
// Turns on a session run one at a time; see Acquire.
type Session struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time

	turn chan struct{}

	mu      sync.Mutex
	history schema.Messages
	ctx     Context
}

// New returns an empty session.
func New(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		turn:      make(chan struct{}, 1),
		history:   schema.NewMessages(),
		ctx:       Context{IsFirstTurn: true},
	}
}

// Acquire waits until no other turn is running on the session. The returned
// func releases it.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.turn <- struct{}{}:
		return func() { <-s.turn }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Context returns a snapshot of the routing state.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// History returns a copy of the conversation history.
func (s *Session) History() schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// Commit applies a resolved turn.
func (s *Session) Commit(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.System != "" {
		// The system prompt always leads the history, even when tool turns
		// came before the first plain-chat turn.
		withSystem := schema.NewMessages(schema.Message{Role: schema.RoleSystem, Content: t.System})
		withSystem.Append(s.history)
		s.history = withSystem
	}
	if t.User != "" {
		s.history.AddUser(t.User)
	}
	s.history.AddAssistant(t.Assistant)

	if t.RecordTool {
		s.ctx.LastToolName = t.Tool
		s.ctx.LastToolResult = t.ToolResult
	}
	if t.ConsumesFirstTurn {
		s.ctx.IsFirstTurn = false
	}
	s.UpdatedAt = time.Now()
}

// Clear drops history and context, as if the session had just started.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = schema.NewMessages()
	s.ctx = Context{IsFirstTurn: true}
	s.UpdatedAt = time.Now()
}

// restore sets state loaded from disk.
func (s *Session) restore(history schema.Messages, ctx Context, createdAt, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.ctx = ctx
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
}
