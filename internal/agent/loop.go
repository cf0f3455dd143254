package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/murmur/internal/bus"
	"github.com/crystaldolphin/murmur/internal/session"
)

const helpText = `🎙 murmur commands:
/new  - Start a new conversation
/help - Show available commands`

// AgentLoop feeds utterances from the bus through the Orchestrator.
//
// Messages are handled one at a time in arrival order, so turns never
// overlap on a session and responses go out in the order they were asked.
type AgentLoop struct {
	bus          bus.Bus
	orchestrator *Orchestrator
	sessions     *session.Manager
}

// NewAgentLoop creates an AgentLoop.
func NewAgentLoop(b bus.Bus, o *Orchestrator, sessions *session.Manager) *AgentLoop {
	return &AgentLoop{bus: b, orchestrator: o, sessions: sessions}
}

// Run reads from the inbound bus until ctx is cancelled.
func (loop *AgentLoop) Run(ctx context.Context) error {
	slog.Info("agent: loop started")

	for {
		select {
		case msg := <-loop.bus.InboundChan():
			loop.handleMessage(ctx, msg)
		case <-ctx.Done():
			slog.Info("agent: loop stopping")
			return ctx.Err()
		}
	}
}

func (loop *AgentLoop) handleMessage(ctx context.Context, msg bus.InboundMessage) {
	slog.Info("agent: processing message", "channel", msg.Channel(), "sender", msg.SenderId(), "preview", msg.Preview())

	reply := loop.ProcessDirect(ctx, msg.SessionKey(), msg.Content())

	out := bus.NewOutboundMessage(msg.Channel(), msg.ChatId(), reply)
	out.SetMetadata(msg.Metadata())
	if err := loop.bus.PublishOutbound(ctx, out); err != nil {
		slog.Warn("agent: reply dropped", "session", msg.SessionKey(), "err", err)
	}
}

// ProcessDirect answers one utterance on the given session outside the bus
// (CLI, tests) and persists the session afterwards.
func (loop *AgentLoop) ProcessDirect(ctx context.Context, sessionKey, content string) string {
	if reply, ok := loop.handleSlashCommand(sessionKey, content); ok {
		return reply
	}

	sess := loop.sessions.GetOrCreate(sessionKey)
	reply := loop.orchestrator.HandleTurn(ctx, sess, content)

	if err := loop.sessions.Save(sess); err != nil {
		slog.Warn("agent: session not saved", "session", sessionKey, "err", err)
	}
	return reply
}

func (loop *AgentLoop) handleSlashCommand(sessionKey, content string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(content)) {
	case "/new":
		loop.sessions.Reset(sessionKey)
		return "New session started.", true
	case "/help":
		return helpText, true
	}
	return "", false
}
