package notes

import (
	"context"
	"sync"

	"github.com/crystaldolphin/murmur/internal/schema"
)

type entry struct {
	note schema.Note
	vec  []float32
}

// MemoryStore keeps notes in process. With an Embedder it ranks by cosine
// similarity; without one it ranks by keyword overlap and drops notes that
// share no word with the query.
type MemoryStore struct {
	embedder schema.Embedder

	mu      sync.RWMutex
	entries []entry
}

func NewMemoryStore(embedder schema.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

func (s *MemoryStore) Store(ctx context.Context, n schema.Note) error {
	n, err := prepare(n)
	if err != nil {
		return err
	}
	var vec []float32
	if s.embedder != nil {
		if vec, err = embed(ctx, s.embedder, noteText(n)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].note.ID == n.ID {
			s.entries[i] = entry{note: n, vec: vec}
			return nil
		}
	}
	s.entries = append(s.entries, entry{note: n, vec: vec})
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, text string, topN int) ([]schema.NoteMatch, error) {
	var qvec []float32
	if s.embedder != nil {
		var err error
		if qvec, err = embed(ctx, s.embedder, text); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]schema.NoteMatch, 0, len(s.entries))
	for _, e := range s.entries {
		if qvec != nil {
			matches = append(matches, schema.NoteMatch{Note: e.note, Score: cosine(qvec, e.vec)})
			continue
		}
		if score := keywordScore(text, noteText(e.note)); score > 0 {
			matches = append(matches, schema.NoteMatch{Note: e.note, Score: score})
		}
	}
	return top(matches, topN), nil
}

// Len returns the number of stored notes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
