package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidNote is returned when a note is missing its title or content.
var ErrInvalidNote = errors.New("invalid note")

// Note is one stored document.
type Note struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the fields every store requires.
func (n Note) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidNote)
	}
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidNote)
	}
	return nil
}

// NoteMatch is a query result with its relevance score (higher is better).
type NoteMatch struct {
	Note  Note    `json:"note"`
	Score float64 `json:"score"`
}

// DefaultTopN is the number of matches returned when a caller passes 0.
const DefaultTopN = 5

// NoteStore persists notes and answers similarity queries.
type NoteStore interface {
	// Store saves the note. It fails with ErrInvalidNote if title or content is empty.
	Store(ctx context.Context, note Note) error
	// Query returns up to topN notes ordered by decreasing relevance.
	Query(ctx context.Context, text string, topN int) ([]NoteMatch, error)
	Close() error
}
