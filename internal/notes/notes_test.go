package notes

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// vocabEmbedder embeds text as word counts over a fixed vocabulary.
type vocabEmbedder struct{ vocab []string }

func (e vocabEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.vocab))
	for _, w := range terms(text) {
		for i, v := range e.vocab {
			if w == v {
				vec[i]++
			}
		}
	}
	// Keep every vector non-zero so cosine is defined.
	vec = append(vec, 0.01)
	return vec, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

var testVocab = vocabEmbedder{vocab: []string{"groceries", "milk", "eggs", "meeting", "budget", "dentist"}}

func seed(t *testing.T, store schema.NoteStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, n := range []schema.Note{
		{Title: "Groceries", Content: "milk, eggs and bread"},
		{Title: "Budget meeting", Content: "meeting with finance about the budget"},
		{Title: "Dentist", Content: "dentist appointment on Friday"},
	} {
		n.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Store(ctx, n))
	}
}

func storesUnderTest(t *testing.T) map[string]func(schema.Embedder) schema.NoteStore {
	return map[string]func(schema.Embedder) schema.NoteStore{
		"memory": func(e schema.Embedder) schema.NoteStore { return NewMemoryStore(e) },
		"sqlite": func(e schema.Embedder) schema.NoteStore {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "notes", "notes.db"), e)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

func TestStore_RejectsIncompleteNotes(t *testing.T) {
	for name, open := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			store := open(nil)
			err := store.Store(context.Background(), schema.Note{Title: "Empty", Content: "   "})
			assert.ErrorIs(t, err, schema.ErrInvalidNote)

			err = store.Store(context.Background(), schema.Note{Content: "no title"})
			assert.ErrorIs(t, err, schema.ErrInvalidNote)

			got, err := store.Query(context.Background(), "empty title", 5)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_EmbedderFailure(t *testing.T) {
	for name, open := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			store := open(failingEmbedder{})
			err := store.Store(context.Background(), schema.Note{Title: "t", Content: "c"})
			assert.ErrorContains(t, err, "embedder offline")
		})
	}
}

// ─── Query ───────────────────────────────────────────────────────────────────

func TestQuery_RoundTrip(t *testing.T) {
	for name, open := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			store := open(testVocab)
			seed(t, store)

			got, err := store.Query(context.Background(), "milk and eggs", 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Groceries", got[0].Note.Title)
			assert.Equal(t, "milk, eggs and bread", got[0].Note.Content)
			assert.NotEmpty(t, got[0].Note.ID)
			assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), got[0].Note.Timestamp)
		})
	}
}

func TestQuery_OrderedByRelevance(t *testing.T) {
	for name, open := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			store := open(testVocab)
			seed(t, store)

			got, err := store.Query(context.Background(), "budget meeting", 0)
			require.NoError(t, err)
			require.Len(t, got, 3, "embedding search ranks every note")
			assert.Equal(t, "Budget meeting", got[0].Note.Title)
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
			}
		})
	}
}

func TestQuery_KeywordFallback(t *testing.T) {
	for name, open := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			store := open(nil)
			seed(t, store)

			got, err := store.Query(context.Background(), "Dentist friday", 5)
			require.NoError(t, err)
			require.Len(t, got, 1, "notes sharing no word are dropped")
			assert.Equal(t, "Dentist", got[0].Note.Title)
			assert.Equal(t, 1.0, got[0].Score)

			got, err = store.Query(context.Background(), "holiday", 5)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_SameIDReplaces(t *testing.T) {
	for name, open := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			store := open(nil)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, schema.Note{ID: "n1", Title: "Plan", Content: "draft one"}))
			require.NoError(t, store.Store(ctx, schema.Note{ID: "n1", Title: "Plan", Content: "draft two"}))

			got, err := store.Query(ctx, "plan", 5)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "draft two", got[0].Note.Content)
		})
	}
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	first, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Store(ctx, schema.Note{Title: "Wifi", Content: "password is on the router"}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Query(ctx, "wifi password", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Wifi", got[0].Note.Title)
}

func TestSQLite_CorruptEmbeddingScoresZero(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "notes.db"), testVocab)
	require.NoError(t, err)
	defer store.Close()
	seed(t, store)

	_, err = store.db.ExecContext(ctx, `UPDATE notes SET embedding = 'not json' WHERE title = 'Groceries'`)
	require.NoError(t, err)

	got, err := store.Query(ctx, "milk and eggs", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	last := got[len(got)-1]
	assert.Equal(t, "Groceries", last.Note.Title)
	assert.Zero(t, last.Score)
}

func TestDecodeEmbedding(t *testing.T) {
	assert.Equal(t, []float32{1, 0.5}, decodeEmbedding("a", "[1,0.5]"))
	assert.Nil(t, decodeEmbedding("b", "{broken"))
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func TestSplitChunks(t *testing.T) {
	text := "first paragraph\nsecond paragraph\n\n" + strings.Repeat("x", 25)

	got := splitChunks(text, 20)

	assert.Equal(t, []string{"first paragraph", "second paragraph", strings.Repeat("x", 20), "xxxxx"}, got)
	assert.Equal(t, []string{"a\nb"}, splitChunks("a\nb", 20))
	assert.Empty(t, splitChunks(" \n\n ", 20))
}

func TestVectorLiteral(t *testing.T) {
	got, err := vectorLiteral([]float32{0.5, -1, 2})
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1,2]", got)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 2}))
}
