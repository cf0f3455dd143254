// Package notes stores user notes and ranks them against queries.
package notes

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// prepare validates n and fills the ID and timestamp when missing.
func prepare(n schema.Note) (schema.Note, error) {
	if err := n.Validate(); err != nil {
		return schema.Note{}, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	n.Timestamp = n.Timestamp.UTC()
	return n, nil
}

// noteText is what gets embedded and keyword-matched.
func noteText(n schema.Note) string {
	return n.Title + "\n" + n.Content
}

func embed(ctx context.Context, e schema.Embedder, text string) ([]float32, error) {
	vec, err := e.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed: empty vector")
	}
	return vec, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func terms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywordScore is the share of query terms found in text.
func keywordScore(query, text string) float64 {
	q := terms(query)
	if len(q) == 0 {
		return 0
	}
	words := make(map[string]struct{})
	for _, w := range terms(text) {
		words[w] = struct{}{}
	}
	hits := 0
	for _, w := range q {
		if _, ok := words[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(q))
}

// top orders matches by score, newest first on ties, and keeps topN.
func top(matches []schema.NoteMatch, topN int) []schema.NoteMatch {
	if topN <= 0 {
		topN = schema.DefaultTopN
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Note.Timestamp.After(matches[j].Note.Timestamp)
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}
