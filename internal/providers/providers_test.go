package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/crystaldolphin/murmur/internal/schema"
)

func testMessages() schema.Messages {
	msgs := schema.NewMessages()
	msgs.AddSystem("be brief")
	msgs.AddUser("hello")
	return msgs
}

// ─── Registry ────────────────────────────────────────────────────────────────

func TestResolve(t *testing.T) {
	cases := []struct {
		name, kind, key, base, want string
	}{
		{"explicit", "groq", "", "", "groq"},
		{"explicit mixed case", " OpenAI ", "", "", "openai"},
		{"key prefix", "", "sk-or-abc", "", "openrouter"},
		{"base keyword", "", "k", "https://api.deepseek.com/v1", "deepseek"},
		{"ollama port", "", "", "http://gpu-box:11434", "ollama"},
		{"plain key", "", "sk-abc", "", "openai"},
		{"nothing set", "", "", "", "ollama"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := Resolve(tc.kind, tc.key, tc.base)
			require.NotNil(t, spec)
			assert.Equal(t, tc.want, spec.Name)
		})
	}
	assert.Nil(t, Resolve("anthropic-native", "", ""))
}

func TestNew(t *testing.T) {
	p, err := New(Params{Model: "llama3.1"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)
	assert.Equal(t, "ollama/llama3.1", p.Name())

	p, err = New(Params{Kind: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)
	assert.Equal(t, "openai/gpt-4o-mini", p.Name())

	_, err = New(Params{Kind: "openai", Model: "gpt-4o-mini"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = New(Params{Kind: "nope", Model: "x"})
	assert.ErrorContains(t, err, "unknown kind")

	_, err = New(Params{})
	assert.ErrorContains(t, err, "no model")
}

// ─── Ollama ──────────────────────────────────────────────────────────────────

func newOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req struct {
				Model    string `json:"model"`
				Stream   *bool  `json:"stream"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "llama3.1", req.Model)
			assert.Equal(t, "system", req.Messages[0].Role)
			w.Header().Set("Content-Type", "application/x-ndjson")
			if req.Stream != nil && !*req.Stream {
				fmt.Fprintln(w, `{"model":"llama3.1","message":{"role":"assistant","content":"Hello, world"},"done":true}`)
				return
			}
			for _, part := range []string{"Hel", "lo, ", "world"} {
				fmt.Fprintf(w, `{"model":"llama3.1","message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
			}
			fmt.Fprintln(w, `{"model":"llama3.1","message":{"role":"assistant","content":""},"done":true}`)
		case "/api/embed":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"model":"nomic-embed-text","embeddings":[[0.1,0.2,0.3]]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllama_CompleteAndStream(t *testing.T) {
	srv := newOllamaServer(t)
	defer srv.Close()
	p, err := NewOllamaProvider(srv.URL, "llama3.1", "", 0.2)
	require.NoError(t, err)
	ctx := context.Background()

	text, err := p.Complete(ctx, testMessages())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	stream, err := p.Stream(ctx, testMessages())
	require.NoError(t, err)
	text, err = stream.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	vec, err := p.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllama_StreamError(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'llama3.1' not found"}`)
	}))
	defer srv.Close()
	p, err := NewOllamaProvider(srv.URL, "llama3.1", "", 0)
	require.NoError(t, err)

	stream, err := p.Stream(context.Background(), testMessages())
	require.NoError(t, err)
	_, err = stream.Collect(context.Background())
	assert.ErrorContains(t, err, "not found")
}

// ─── OpenAI ──────────────────────────────────────────────────────────────────

func newOpenAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req struct {
				Model  string `json:"model"`
				Stream bool   `json:"stream"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-4o-mini", req.Model)
			if !req.Stream {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Hello, world"},"finish_reason":"stop"}]}`)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			for _, part := range []string{"Hel", "lo, ", "world"} {
				fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		case "/v1/embeddings":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOpenAI_CompleteAndStream(t *testing.T) {
	srv := newOpenAIServer(t)
	defer srv.Close()
	p := NewOpenAIProvider(FindByName("openai"), "sk-test", srv.URL+"/v1", "gpt-4o-mini", "", 0.2)
	ctx := context.Background()

	text, err := p.Complete(ctx, testMessages())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	stream, err := p.Stream(ctx, testMessages())
	require.NoError(t, err)
	text, err = stream.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	vec, err := p.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOpenAI_StreamCancelled(t *testing.T) {
	srv := newOpenAIServer(t)
	defer srv.Close()
	p := NewOpenAIProvider(FindByName("openai"), "sk-test", srv.URL+"/v1", "gpt-4o-mini", "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := p.Stream(ctx, testMessages())
	require.NoError(t, err)
	cancel()

	_, err = stream.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
