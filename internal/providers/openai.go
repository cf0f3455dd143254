package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/crystaldolphin/murmur/internal/schema"
)

const defaultOpenAIEmbedModel = "text-embedding-3-small"

// OpenAIProvider talks to any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client      *openai.Client
	spec        *ProviderSpec
	model       string
	embedModel  string
	temperature float32
}

// NewOpenAIProvider constructs a provider from raw config values. An empty
// apiBase falls back to the spec's default.
func NewOpenAIProvider(spec *ProviderSpec, apiKey, apiBase, model, embedModel string, temperature float64) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if apiBase == "" && spec != nil {
		apiBase = spec.DefaultAPIBase
	}
	if apiBase != "" {
		cfg.BaseURL = strings.TrimRight(apiBase, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	if embedModel == "" {
		embedModel = defaultOpenAIEmbedModel
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		spec:        spec,
		model:       model,
		embedModel:  embedModel,
		temperature: float32(temperature),
	}
}

func (p *OpenAIProvider) Name() string {
	if p.spec != nil {
		return p.spec.Name + "/" + p.model
	}
	return p.model
}

func (p *OpenAIProvider) request(msgs schema.Messages) openai.ChatCompletionRequest {
	wire := make([]openai.ChatCompletionMessage, len(msgs.Messages))
	for i, m := range msgs.Messages {
		wire[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    wire,
		Temperature: p.temperature,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, msgs schema.Messages) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(msgs))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, msgs schema.Messages) (*schema.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := p.request(msgs)
	return streamChunks(ctx, func(ctx context.Context, emit func(string) error) error {
		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return fmt.Errorf("chat completion stream: %w", err)
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("chat completion stream: %w", err)
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if err := emit(resp.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
	}), nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embeddings: no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}
