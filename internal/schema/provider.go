package schema

import "context"

// CompletionService is the language-model capability the assistant depends on.
// Errors are ordinary returns; implementations must not panic on bad replies.
type CompletionService interface {
	// Complete sends messages and blocks for the full reply.
	Complete(ctx context.Context, messages Messages) (string, error)
	// Stream sends messages and returns the reply as lazily produced chunks.
	// Cancelling ctx abandons the stream.
	Stream(ctx context.Context, messages Messages) (*Stream, error)
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reply is what a tool handler produces: either a plain string or a stream.
type Reply struct {
	text   string
	stream *Stream
}

// TextReply wraps a finished string.
func TextReply(text string) Reply { return Reply{text: text} }

// StreamReply wraps a chunk stream that is resolved later.
func StreamReply(s *Stream) Reply { return Reply{stream: s} }

// IsStream reports whether the reply still has to be collected.
func (r Reply) IsStream() bool { return r.stream != nil }

// Resolve returns the reply text, collecting the stream if there is one.
func (r Reply) Resolve(ctx context.Context) (string, error) {
	if r.stream == nil {
		return r.text, nil
	}
	return r.stream.Collect(ctx)
}

// Close abandons an unresolved stream.
func (r Reply) Close() {
	if r.stream != nil {
		r.stream.Close()
	}
}
