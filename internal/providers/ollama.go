package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/crystaldolphin/murmur/internal/schema"
)

const defaultOllamaEmbedModel = "nomic-embed-text"

// OllamaProvider talks to a local or remote Ollama server.
type OllamaProvider struct {
	client      *ollama.Client
	model       string
	embedModel  string
	temperature float64
}

// NewOllamaProvider creates a provider for the server at host.
func NewOllamaProvider(host, model, embedModel string, temperature float64) (*OllamaProvider, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if embedModel == "" {
		embedModel = defaultOllamaEmbedModel
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &OllamaProvider{
		client:      ollama.NewClient(u, httpClient),
		model:       model,
		embedModel:  embedModel,
		temperature: temperature,
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama/" + p.model }

func (p *OllamaProvider) request(msgs schema.Messages, stream bool) *ollama.ChatRequest {
	wire := make([]ollama.Message, len(msgs.Messages))
	for i, m := range msgs.Messages {
		wire[i] = ollama.Message{Role: string(m.Role), Content: m.Content}
	}
	return &ollama.ChatRequest{
		Model:    p.model,
		Messages: wire,
		Stream:   &stream,
		Options:  map[string]any{"temperature": p.temperature},
	}
}

func (p *OllamaProvider) Complete(ctx context.Context, msgs schema.Messages) (string, error) {
	var sb strings.Builder
	err := p.client.Chat(ctx, p.request(msgs, false), func(r ollama.ChatResponse) error {
		sb.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return sb.String(), nil
}

func (p *OllamaProvider) Stream(ctx context.Context, msgs schema.Messages) (*schema.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := p.request(msgs, true)
	return streamChunks(ctx, func(ctx context.Context, emit func(string) error) error {
		err := p.client.Chat(ctx, req, func(r ollama.ChatResponse) error {
			return emit(r.Message.Content)
		})
		if err != nil {
			return fmt.Errorf("ollama chat: %w", err)
		}
		return nil
	}), nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := p.client.Embed(ctx, &ollama.EmbedRequest{
		Model: p.embedModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, errors.New("ollama embed: no embedding returned")
	}
	return res.Embeddings[0], nil
}
