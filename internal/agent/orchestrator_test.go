package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/crystaldolphin/murmur/internal/handlers"
	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/session"
	"github.com/crystaldolphin/murmur/internal/shared/llmtest"
	"github.com/crystaldolphin/murmur/internal/tools"
)

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(_ string, s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func catalogSchema(t *testing.T, name string) schema.ToolSchema {
	t.Helper()
	s, ok := tools.BuiltinCatalog().Lookup(name)
	require.True(t, ok)
	return s
}

func newTestOrchestrator(t *testing.T, llm schema.CompletionService, regs map[string]tools.Handler, log *stateLog) *Orchestrator {
	t.Helper()
	b := tools.NewRegistryBuilder()
	for name, h := range regs {
		b.WithTool(catalogSchema(t, name), h)
	}
	reg, err := b.Build()
	require.NoError(t, err)
	opts := Options{LLM: llm, Registry: reg, Keywords: tools.DefaultFollowUpKeywords()}
	if log != nil {
		opts.Observer = log.observe
	}
	return NewOrchestrator(opts)
}

func textHandler(text string) tools.Handler {
	return func(context.Context, string, schema.FilledTool) (schema.Reply, error) {
		return schema.TextReply(text), nil
	}
}

// sessionWithTool returns a session whose last turn used tool.
func sessionWithTool(tool, result string) *session.Session {
	sess := session.New("test")
	sess.Commit(session.Turn{User: "earlier", Assistant: result, RecordTool: true, Tool: tool, ToolResult: result})
	return sess
}

// ─── Follow-ups ──────────────────────────────────────────────────────────────

func TestHandleTurn_FollowUpShortCircuits(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("weather_tool"), llmtest.Text("yes"),
		llmtest.Text("Tomorrow looks a little colder, around 15C."),
	)
	weatherCalled := false
	weather := func(context.Context, string, schema.FilledTool) (schema.Reply, error) {
		weatherCalled = true
		return schema.TextReply("cloudy, 14C"), nil
	}
	log := &stateLog{}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.WeatherTool: weather}, log)
	sess := sessionWithTool(tools.WeatherTool, "sunny, 20C")
	before := sess.Context()

	got := o.HandleTurn(context.Background(), sess, "is it colder tomorrow?")

	assert.Equal(t, "Tomorrow looks a little colder, around 15C.", got)
	assert.False(t, weatherCalled, "follow-ups skip the handler")
	calls := llm.Calls()
	require.Len(t, calls, 3, "classify, validate and the follow-up answer; no filler call")
	assert.False(t, calls[0].Streamed)
	assert.False(t, calls[1].Streamed)
	assert.True(t, calls[2].Streamed)
	last, _ := calls[2].Messages.Last()
	assert.Contains(t, last.Content, "sunny, 20C")
	assert.Contains(t, last.Content, "is it colder tomorrow?")
	assert.Equal(t, before, sess.Context(), "follow-ups keep the original tool context")
	assert.Equal(t, []State{Routing, FollowUp, Responding, Idle}, log.all())

	history := sess.History()
	final, _ := history.Last()
	assert.Equal(t, schema.RoleAssistant, final.Role)
	assert.Equal(t, got, final.Content)
}

func TestHandleTurn_KeywordForOtherToolIsNotFollowUp(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("note_tool"), llmtest.Text("yes"),
		llmtest.Text(`{"toolName":"note_tool","toolArgs":{"action_type":"save","title":"boots","content":"buy rain boots"}}`),
	)
	var saved schema.FilledTool
	note := func(_ context.Context, _ string, filled schema.FilledTool) (schema.Reply, error) {
		saved = filled
		return schema.TextReply(`Saved your note "boots".`), nil
	}
	log := &stateLog{}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.NoteTool: note}, log)
	sess := sessionWithTool(tools.WeatherTool, "sunny, 20C")

	got := o.HandleTurn(context.Background(), sess, "save a note titled boots: buy rain boots")

	assert.Equal(t, `Saved your note "boots".`, got)
	assert.Equal(t, "buy rain boots", saved.String("content"))
	assert.Len(t, llm.Calls(), 3)
	c := sess.Context()
	assert.Equal(t, tools.NoteTool, c.LastToolName)
	assert.Equal(t, got, c.LastToolResult)
	assert.Equal(t, []State{Routing, ToolDispatch, Responding, Idle}, log.all())
}

func TestHandleTurn_NoFollowUpWithoutKeyword(t *testing.T) {
	llm := llmtest.New(llmtest.Text("default"), llmtest.Text("Berlin is lovely."))
	o := newTestOrchestrator(t, llm, nil, nil)
	sess := sessionWithTool(tools.WeatherTool, "sunny, 20C")

	got := o.HandleTurn(context.Background(), sess, "tell me about Berlin")

	assert.Equal(t, "Berlin is lovely.", got)
	assert.Len(t, llm.Calls(), 2)
	assert.Equal(t, tools.DefaultTool, sess.Context().LastToolName)
}

// ─── Tool dispatch ───────────────────────────────────────────────────────────

func TestHandleTurn_ToolUpdatesContext(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("note_tool"), llmtest.Text("yes"),
		llmtest.Text(`{"toolName":"note_tool","toolArgs":{"action_type":"save","title":"Milk","content":"buy milk"}}`),
	)
	var gotFilled schema.FilledTool
	var gotInput string
	note := func(_ context.Context, input string, filled schema.FilledTool) (schema.Reply, error) {
		gotInput, gotFilled = input, filled
		return schema.TextReply(`Saved your note "Milk".`), nil
	}
	log := &stateLog{}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.NoteTool: note}, log)
	sess := session.New("test")

	got := o.HandleTurn(context.Background(), sess, "  save a note called milk: buy milk  ")

	assert.Equal(t, `Saved your note "Milk".`, got)
	assert.Equal(t, "save a note called milk: buy milk", gotInput)
	assert.Equal(t, "Milk", gotFilled.String("title"))
	c := sess.Context()
	assert.Equal(t, tools.NoteTool, c.LastToolName)
	assert.Equal(t, got, c.LastToolResult)
	assert.True(t, c.IsFirstTurn, "tool turns do not send the system prompt")
	assert.Equal(t, []State{Routing, ToolDispatch, Responding, Idle}, log.all())
	assert.Equal(t, 2, len(sess.History().Messages))
}

func TestHandleTurn_StreamedHandlerIsConcatenated(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("course_creator"), llmtest.Text("yes"),
		llmtest.Text(`{"toolArgs":{"input":"","topic":"Go","targetAudience":"","courseFormat":""}}`),
	)
	course := func(context.Context, string, schema.FilledTool) (schema.Reply, error) {
		return schema.StreamReply(schema.StreamOf("Hel", "lo, ", "world")), nil
	}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.CourseTool: course}, nil)

	got := o.HandleTurn(context.Background(), session.New("test"), "make me a Go course")

	assert.Equal(t, "Hello, world", got)
}

func TestHandleTurn_FillFailure(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("weather_tool"), llmtest.Text("yes"),
		llmtest.Text(`{"loc":"Paris"}`), llmtest.Text("no idea"), llmtest.Text(`{"city":"Paris"}`),
	)
	called := false
	weather := func(context.Context, string, schema.FilledTool) (schema.Reply, error) {
		called = true
		return schema.TextReply("unreachable"), nil
	}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.WeatherTool: weather}, nil)
	sess := session.New("test")

	got := o.HandleTurn(context.Background(), sess, "weather over there?")

	assert.Equal(t, FallbackMessage, got)
	assert.False(t, called)
	c := sess.Context()
	assert.Equal(t, tools.WeatherTool, c.LastToolName)
	assert.Empty(t, c.LastToolResult)

	// The apology is not a result, so weather words do not chain onto it.
	llm.Push(llmtest.Text("default"), llmtest.Text("Which city do you mean?"))
	assert.Equal(t, "Which city do you mean?", o.HandleTurn(context.Background(), sess, "is it rainy?"))
}

func TestHandleTurn_CatalogToolWithoutHandlerChats(t *testing.T) {
	llm := llmtest.New(llmtest.Text("calendar_tool"), llmtest.Text("yes"), llmtest.Text("I can't manage calendars yet."))
	o := newTestOrchestrator(t, llm, nil, nil)
	sess := session.New("test")

	got := o.HandleTurn(context.Background(), sess, "add lunch to my calendar")

	assert.Equal(t, "I can't manage calendars yet.", got)
	assert.Equal(t, tools.DefaultTool, sess.Context().LastToolName)
}

// ─── Default chat ────────────────────────────────────────────────────────────

func TestHandleTurn_SystemPromptOnlyOnFirstChatTurn(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("default"), llmtest.Chunks("Hi", " there!"),
		llmtest.Text("default"), llmtest.Text("I'm fine."),
	)
	log := &stateLog{}
	o := newTestOrchestrator(t, llm, nil, log)
	sess := session.New("test")

	assert.Equal(t, "Hi there!", o.HandleTurn(context.Background(), sess, "hello"))
	assert.False(t, sess.Context().IsFirstTurn)
	assert.Equal(t, "I'm fine.", o.HandleTurn(context.Background(), sess, "how are you?"))

	calls := llm.Calls()
	require.Len(t, calls, 4)
	first, second := calls[1].Messages.Messages, calls[3].Messages.Messages
	assert.Equal(t, schema.RoleSystem, first[0].Role)
	assert.Contains(t, first[0].Content, "Rule nr 1: Never assume.")
	assert.Equal(t, schema.Message{Role: schema.RoleUser, Content: "hello"}, first[len(first)-1])

	// The second turn replays history, which starts with the one system prompt.
	systems := 0
	for _, m := range second {
		if m.Role == schema.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Equal(t, []schema.Role{schema.RoleSystem, schema.RoleUser, schema.RoleAssistant, schema.RoleUser}, roles(second))

	assert.Equal(t, []State{
		Routing, DefaultChat, Responding, Idle,
		Routing, DefaultChat, Responding, Idle,
	}, log.all())
}

func roles(msgs []schema.Message) []schema.Role {
	out := make([]schema.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestHandleTurn_ThinkBlocksStripped(t *testing.T) {
	llm := llmtest.New(llmtest.Text("default"), llmtest.Text("<think>greet back</think>\nHello!"))
	o := newTestOrchestrator(t, llm, nil, nil)

	assert.Equal(t, "Hello!", o.HandleTurn(context.Background(), session.New("test"), "hi"))
}

// ─── Failures ────────────────────────────────────────────────────────────────

func TestHandleTurn_EmptyInput(t *testing.T) {
	llm := llmtest.New()
	o := newTestOrchestrator(t, llm, nil, nil)

	assert.Equal(t, NoInputMessage, o.HandleTurn(context.Background(), session.New("test"), " \n\t"))
	assert.Empty(t, llm.Calls())
}

func TestHandleTurn_HandlerErrorLeavesContext(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("weather_tool"), llmtest.Text("yes"),
		llmtest.Text(`{"toolArgs":{"location":"Paris"}}`),
	)
	weather := func(context.Context, string, schema.FilledTool) (schema.Reply, error) {
		return schema.Reply{}, errors.New("weather api: HTTP 503")
	}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.WeatherTool: weather}, nil)
	sess := sessionWithTool(tools.NoteTool, "saved")
	before, history := sess.Context(), sess.History()

	got := o.HandleTurn(context.Background(), sess, "weather in Paris")

	assert.Equal(t, TroubleMessage, got)
	assert.Equal(t, before, sess.Context())
	assert.Equal(t, history, sess.History())
}

func TestHandleTurn_CompletionFailure(t *testing.T) {
	llm := llmtest.New(llmtest.Text("default"), llmtest.Fail(errors.New("connection refused")))
	o := newTestOrchestrator(t, llm, nil, nil)
	sess := session.New("test")

	assert.Equal(t, TroubleMessage, o.HandleTurn(context.Background(), sess, "hello"))
	assert.True(t, sess.Context().IsFirstTurn)
	assert.Equal(t, 0, len(sess.History().Messages))
}

func TestHandleTurn_EmptyReply(t *testing.T) {
	llm := llmtest.New(llmtest.Text("default"), llmtest.Text("<think>nothing to say</think>"))
	o := newTestOrchestrator(t, llm, nil, nil)

	assert.Equal(t, TroubleMessage, o.HandleTurn(context.Background(), session.New("test"), "hello"))
}

func TestHandleTurn_PanicRecovered(t *testing.T) {
	llm := llmtest.New(
		llmtest.Text("time_tool"), llmtest.Text("yes"), llmtest.Text(`{"toolArgs":{"dateTime":""}}`),
		llmtest.Text("default"), llmtest.Text("Still here."),
	)
	boom := func(context.Context, string, schema.FilledTool) (schema.Reply, error) {
		panic("nil clock")
	}
	log := &stateLog{}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.TimeTool: boom}, log)
	sess := session.New("test")

	assert.Equal(t, TroubleMessage, o.HandleTurn(context.Background(), sess, "what time is it?"))
	assert.Equal(t, Idle, log.all()[len(log.all())-1])

	// The session is released and usable after the panic.
	assert.Equal(t, "Still here.", o.HandleTurn(context.Background(), sess, "hello?"))
}

func TestHandleTurn_CancellationLeavesSessionUntouched(t *testing.T) {
	defer goleak.VerifyNone(t)

	llm := llmtest.New(
		llmtest.Text("course_creator"), llmtest.Text("yes"),
		llmtest.Text(`{"toolArgs":{"input":"","topic":"Go","targetAudience":"","courseFormat":""}}`),
	)
	started := make(chan struct{})
	endless := func(ctx context.Context, _ string, _ schema.FilledTool) (schema.Reply, error) {
		streamCtx, stop := context.WithCancel(ctx)
		chunks := make(chan schema.Chunk)
		go func() {
			defer close(chunks)
			close(started)
			for {
				select {
				case chunks <- schema.Chunk{Text: "more "}:
				case <-streamCtx.Done():
					return
				}
			}
		}()
		return schema.StreamReply(schema.NewStream(chunks, stop)), nil
	}
	o := newTestOrchestrator(t, llm, map[string]tools.Handler{tools.CourseTool: endless}, nil)
	sess := sessionWithTool(tools.WeatherTool, "sunny, 20C")
	before, history := sess.Context(), sess.History()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	got := o.HandleTurn(ctx, sess, "make me a course")

	assert.Equal(t, TroubleMessage, got)
	assert.Equal(t, before, sess.Context())
	assert.Equal(t, history, sess.History())
}

func TestHandleTurn_SerialisesTurnsPerSession(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0
	llm := llmtest.Func(func(ctx context.Context, msgs schema.Messages) (string, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return "default", nil
	})
	o := newTestOrchestrator(t, llm, nil, nil)
	sess := session.New("test")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.HandleTurn(context.Background(), sess, "hello")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 9, len(sess.History().Messages), "one system prompt plus four user/assistant pairs")
}

// ─── End to end ──────────────────────────────────────────────────────────────

func TestHandleTurn_WeatherEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Paris", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"temp":20,"condition":"sunny"}`))
	}))
	defer srv.Close()

	llm := llmtest.New(
		llmtest.Text("weather_tool"), llmtest.Text("yes"),
		llmtest.Text(`{"toolName":"weather_tool","toolArgs":{"location":"Paris"}}`),
		llmtest.Chunks("It's sunny ", "and 20°C in Paris."),
	)
	catalog := tools.BuiltinCatalog()
	reg, err := handlers.Register(tools.NewRegistryBuilder(), catalog, handlers.Deps{
		LLM:     llm,
		Weather: handlers.NewWeatherAPI(srv.URL, "test-key", srv.Client()),
	}).Build()
	require.NoError(t, err)
	o := NewOrchestrator(Options{LLM: llm, Catalog: catalog, Registry: reg, Keywords: tools.DefaultFollowUpKeywords()})
	sess := session.New("test")

	got := o.HandleTurn(context.Background(), sess, "What's the weather in Paris?")

	assert.Equal(t, "It's sunny and 20°C in Paris.", got)
	assert.Equal(t, tools.WeatherTool, sess.Context().LastToolName)
	assert.Equal(t, got, sess.Context().LastToolResult)
	assert.Equal(t, 0, llm.Remaining())

	// A weather follow-up is answered from the stored result.
	llm.Push(llmtest.Text("weather_tool"), llmtest.Text("yes"), llmtest.Text("It will stay sunny."))
	assert.Equal(t, "It will stay sunny.", o.HandleTurn(context.Background(), sess, "any rain later?"))
	assert.Len(t, llm.Calls(), 7)
	assert.Equal(t, "It's sunny and 20°C in Paris.", sess.Context().LastToolResult)
}
