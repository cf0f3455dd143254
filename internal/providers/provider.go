// Package providers implements schema.CompletionService and schema.Embedder
// over Ollama and OpenAI-compatible APIs.
package providers

import (
	"context"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// Provider is a chat model that can also embed text.
type Provider interface {
	schema.CompletionService
	schema.Embedder
	// Name returns the provider and model, e.g. "ollama/llama3.1".
	Name() string
}

// Params are the raw values needed to construct any Provider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	Kind        string // registry name, "" to detect from APIKey/APIBase
	APIKey      string
	APIBase     string
	Model       string
	EmbedModel  string
	Temperature float64
}

// streamChunks runs produce in a goroutine and exposes what it sends as a
// Stream. produce must stop when its context is done.
func streamChunks(ctx context.Context, produce func(ctx context.Context, emit func(string) error) error) *schema.Stream {
	streamCtx, stop := context.WithCancel(ctx)
	chunks := make(chan schema.Chunk)

	emit := func(text string) error {
		if text == "" {
			return nil
		}
		select {
		case chunks <- schema.Chunk{Text: text}:
			return nil
		case <-streamCtx.Done():
			return streamCtx.Err()
		}
	}

	go func() {
		defer close(chunks)
		if err := produce(streamCtx, emit); err != nil && streamCtx.Err() == nil {
			select {
			case chunks <- schema.Chunk{Err: err}:
			case <-streamCtx.Done():
			}
		}
	}()
	return schema.NewStream(chunks, stop)
}
