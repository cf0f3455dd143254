// Package agent routes each utterance to a tool handler or plain chat and
// runs the loop that answers messages from the bus.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/session"
	"github.com/crystaldolphin/murmur/internal/shared/llmutils"
	"github.com/crystaldolphin/murmur/internal/tools"
)

// User-visible replies for turns that could not be answered normally.
const (
	FallbackMessage = "Sorry, I couldn't work out the details for that request. Could you rephrase it?"
	TroubleMessage  = "I had trouble retrieving a response, please try again."
	NoInputMessage  = "I didn't catch that. Could you say it again?"
)

var errEmptyReply = errors.New("empty reply")

// State is the orchestrator's position within one turn.
type State int

const (
	Idle State = iota
	Routing
	FollowUp
	ToolDispatch
	DefaultChat
	Responding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Routing:
		return "routing"
	case FollowUp:
		return "follow_up"
	case ToolDispatch:
		return "tool_dispatch"
	case DefaultChat:
		return "default_chat"
	case Responding:
		return "responding"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Observer is told about every state a turn enters.
type Observer func(sessionKey string, s State)

// Options configures an Orchestrator.
type Options struct {
	LLM         schema.CompletionService
	Catalog     *tools.Catalog
	Registry    *tools.Registry
	Keywords    map[string][]string // follow-up keywords per tool
	MaxAttempts int
	Observer    Observer
}

// Orchestrator runs turns: it routes an utterance to a follow-up answer, a
// tool handler or plain chat, resolves the reply to one string and records
// the turn on the session. It holds no per-session state and may serve many
// sessions at once; turns on the same session are serialised.
type Orchestrator struct {
	llm       schema.CompletionService
	catalog   *tools.Catalog
	registry  *tools.Registry
	selector  *ToolSelector
	filler    *ArgumentFiller
	followUps *FollowUpDetector
	prompts   *ContextBuilder
	observer  Observer
}

// NewOrchestrator wires the routing components around opts.LLM.
func NewOrchestrator(opts Options) *Orchestrator {
	prompts := NewContextBuilder()
	catalog := opts.Catalog
	if catalog == nil {
		catalog = tools.BuiltinCatalog()
	}
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Orchestrator{
		llm:       opts.LLM,
		catalog:   catalog,
		registry:  registry,
		selector:  NewToolSelector(opts.LLM, prompts, opts.MaxAttempts),
		filler:    NewArgumentFiller(opts.LLM, prompts, opts.MaxAttempts),
		followUps: NewFollowUpDetector(opts.Keywords),
		prompts:   prompts,
		observer:  opts.Observer,
	}
}

// Catalog returns the tools the orchestrator routes between.
func (o *Orchestrator) Catalog() *tools.Catalog { return o.catalog }

// HandleTurn answers one utterance. It always returns text for the user:
// errors and panics become TroubleMessage. The session is only updated when
// the turn resolves, so a cancelled turn leaves it untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *session.Session, input string) (reply string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return NoInputMessage
	}

	release, err := sess.Acquire(ctx)
	if err != nil {
		slog.Info("agent: turn abandoned before start", "session", sess.Key, "err", err)
		return TroubleMessage
	}
	defer release()
	defer o.enter(sess.Key, Idle)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent: turn panicked", "session", sess.Key, "panic", r)
			reply = TroubleMessage
		}
	}()

	turn, err := o.route(ctx, sess, input)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("agent: turn abandoned", "session", sess.Key, "err", ctx.Err())
		} else {
			slog.Warn("agent: turn failed", "session", sess.Key, "err", err)
		}
		return TroubleMessage
	}

	sess.Commit(turn)
	return turn.Assistant
}

func (o *Orchestrator) route(ctx context.Context, sess *session.Session, input string) (session.Turn, error) {
	o.enter(sess.Key, Routing)
	c := sess.Context()

	name := o.selector.SelectTool(ctx, o.catalog, input)
	if err := ctx.Err(); err != nil {
		return session.Turn{}, err
	}
	slog.Debug("agent: tool selected", "session", sess.Key, "tool", name)

	// A follow-up needs the selector to land on the previous tool again; it
	// then skips argument filling and the handler.
	if o.followUps.IsFollowUp(c, name, input) {
		return o.followUp(ctx, sess, c, input)
	}

	reg, err := o.registry.Get(name)
	if errors.Is(err, tools.ErrNoTool) {
		if name != tools.DefaultTool {
			slog.Debug("agent: no handler, chatting", "session", sess.Key, "tool", name)
		}
		return o.chat(ctx, sess, c, input)
	}
	return o.dispatch(ctx, sess, reg, input)
}

func (o *Orchestrator) followUp(ctx context.Context, sess *session.Session, c session.Context, input string) (session.Turn, error) {
	o.enter(sess.Key, FollowUp)

	msgs := sess.History()
	msgs.AddUser(o.prompts.FollowUpMessage(c.LastToolName, c.LastToolResult, input))

	stream, err := o.llm.Stream(ctx, msgs)
	if err != nil {
		return session.Turn{}, fmt.Errorf("follow-up completion: %w", err)
	}
	text, err := o.respond(ctx, sess.Key, schema.StreamReply(stream))
	if err != nil {
		return session.Turn{}, err
	}
	// Context stays on the original tool turn so follow-ups can chain.
	return session.Turn{User: input, Assistant: text}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, sess *session.Session, reg tools.Registration, input string) (session.Turn, error) {
	o.enter(sess.Key, ToolDispatch)
	name := reg.Schema.Name

	filled, err := o.filler.FillArguments(ctx, reg.Schema, input)
	if err != nil {
		if ctx.Err() != nil {
			return session.Turn{}, ctx.Err()
		}
		slog.Warn("agent: arguments not filled", "session", sess.Key, "tool", name, "err", err)
		o.enter(sess.Key, Responding)
		// The apology is not a tool result; an empty result keeps it out
		// of follow-up answers.
		return session.Turn{User: input, Assistant: FallbackMessage, RecordTool: true, Tool: name}, nil
	}

	out, err := reg.Handler(ctx, input, filled)
	if err != nil {
		return session.Turn{}, fmt.Errorf("%s handler: %w", name, err)
	}
	text, err := o.respond(ctx, sess.Key, out)
	if err != nil {
		return session.Turn{}, err
	}
	return session.Turn{User: input, Assistant: text, RecordTool: true, Tool: name, ToolResult: text}, nil
}

func (o *Orchestrator) chat(ctx context.Context, sess *session.Session, c session.Context, input string) (session.Turn, error) {
	o.enter(sess.Key, DefaultChat)

	turn := session.Turn{User: input, RecordTool: true, Tool: tools.DefaultTool}
	msgs := schema.NewMessages()
	if c.IsFirstTurn {
		turn.System = o.prompts.SystemPrompt(o.catalog)
		turn.ConsumesFirstTurn = true
		msgs.AddSystem(turn.System)
	}
	msgs.Append(sess.History())
	msgs.AddUser(input)

	stream, err := o.llm.Stream(ctx, msgs)
	if err != nil {
		return session.Turn{}, fmt.Errorf("chat completion: %w", err)
	}
	text, err := o.respond(ctx, sess.Key, schema.StreamReply(stream))
	if err != nil {
		return session.Turn{}, err
	}
	turn.Assistant = text
	turn.ToolResult = text
	return turn, nil
}

// respond resolves a reply to its final text.
func (o *Orchestrator) respond(ctx context.Context, key string, out schema.Reply) (string, error) {
	o.enter(key, Responding)
	text, err := out.Resolve(ctx)
	if err != nil {
		out.Close()
		return "", fmt.Errorf("resolve reply: %w", err)
	}
	text = llmutils.StripThink(text)
	if text == "" {
		return "", errEmptyReply
	}
	return text, nil
}

func (o *Orchestrator) enter(key string, s State) {
	slog.Debug("agent: state", "session", key, "state", s.String())
	if o.observer != nil {
		o.observer(key, s)
	}
}
