package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// endless produces "x" chunks until stopped.
func endless(ctx context.Context) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ch <- Chunk{Text: "x"}:
			}
		}
	}()
	return NewStream(ch, cancel)
}

func TestStream_CollectKeepsOrder(t *testing.T) {
	got, err := StreamOf("Hel", "lo, ", "world").Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got)
}

func TestStream_CollectTwice(t *testing.T) {
	s := StreamOf("a")
	_, err := s.Collect(context.Background())
	require.NoError(t, err)

	_, err = s.Collect(context.Background())
	assert.ErrorIs(t, err, ErrStreamConsumed)
}

func TestStream_ChunkErrorStops(t *testing.T) {
	boom := errors.New("boom")
	ch := make(chan Chunk, 2)
	ch <- Chunk{Text: "partial"}
	ch <- Chunk{Err: boom}
	close(ch)

	got, err := NewStream(ch, nil).Collect(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got)
}

func TestStream_CancelReleasesProducer(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := endless(context.Background()).Collect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_CloseWithoutCollect(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := endless(context.Background())
	s.Close()
	s.Close()

	_, err := s.Collect(context.Background())
	assert.ErrorIs(t, err, ErrStreamConsumed)
}

func TestReply_Resolve(t *testing.T) {
	ctx := context.Background()

	text, err := TextReply("plain").Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	r := StreamReply(StreamOf("a", "b"))
	assert.True(t, r.IsStream())
	text, err = r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}
