package schema

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrStreamConsumed is returned when a stream is read a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// Chunk is one piece of a streamed completion. A chunk with a non-nil Err
// terminates the stream.
type Chunk struct {
	Text string
	Err  error
}

// Stream is a finite, forward-only sequence of text chunks. It can be
// collected once; Close abandons it and releases the producer.
type Stream struct {
	chunks <-chan Chunk
	stop   context.CancelFunc

	mu       sync.Mutex
	consumed bool
	closed   bool
}

// NewStream wraps a producer channel. stop is called when the consumer
// abandons the stream; the producer must close chunks once it returns.
func NewStream(chunks <-chan Chunk, stop context.CancelFunc) *Stream {
	if stop == nil {
		stop = func() {}
	}
	return &Stream{chunks: chunks, stop: stop}
}

// StreamOf returns a stream that yields parts in order.
func StreamOf(parts ...string) *Stream {
	ch := make(chan Chunk, len(parts))
	for _, p := range parts {
		ch <- Chunk{Text: p}
	}
	close(ch)
	return NewStream(ch, nil)
}

// Collect concatenates every chunk in arrival order. If ctx is done before
// the producer finishes, the stream is closed and ctx.Err() is returned.
func (s *Stream) Collect(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.consumed {
		s.mu.Unlock()
		return "", ErrStreamConsumed
	}
	s.consumed = true
	s.mu.Unlock()

	defer s.Close()

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case c, ok := <-s.chunks:
			if !ok {
				// A producer stopped by cancellation also closes the channel.
				if err := ctx.Err(); err != nil {
					return "", err
				}
				return sb.String(), nil
			}
			if c.Err != nil {
				return "", c.Err
			}
			sb.WriteString(c.Text)
		}
	}
}

// Close stops the producer. It is safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.consumed = true
	s.stop()
}
