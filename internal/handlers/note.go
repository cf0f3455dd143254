package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// Replies of the note tool that need no model call.
const (
	NoteIncompleteMessage = "I need both a title and some content to save a note."
	NoteNotFoundMessage   = "I couldn't find any notes about that."
	NoteActionMessage     = "Do you want to save a note or get one? Please say save or get."
)

// NoteHandler saves and retrieves notes.
type NoteHandler struct {
	store     schema.NoteStore
	optimizer *QueryOptimizer
	sum       *Summarizer
	topN      int
	now       func() time.Time
}

// NewNoteHandler creates a NoteHandler. topN <= 0 means schema.DefaultTopN.
func NewNoteHandler(store schema.NoteStore, optimizer *QueryOptimizer, sum *Summarizer, topN int, now func() time.Time) *NoteHandler {
	if topN <= 0 {
		topN = schema.DefaultTopN
	}
	if now == nil {
		now = time.Now
	}
	return &NoteHandler{store: store, optimizer: optimizer, sum: sum, topN: topN, now: now}
}

// Handle dispatches on action_type.
func (h *NoteHandler) Handle(ctx context.Context, input string, filled schema.FilledTool) (schema.Reply, error) {
	switch strings.ToLower(strings.TrimSpace(filled.String("action_type"))) {
	case "save":
		return h.save(ctx, filled)
	case "get":
		return h.get(ctx, input)
	}
	return schema.TextReply(NoteActionMessage), nil
}

func (h *NoteHandler) save(ctx context.Context, filled schema.FilledTool) (schema.Reply, error) {
	note := schema.Note{
		Title:     strings.TrimSpace(filled.String("title")),
		Content:   strings.TrimSpace(filled.String("content")),
		Timestamp: h.now(),
	}
	if err := h.store.Store(ctx, note); err != nil {
		if errors.Is(err, schema.ErrInvalidNote) {
			return schema.TextReply(NoteIncompleteMessage), nil
		}
		return schema.Reply{}, fmt.Errorf("store note: %w", err)
	}
	slog.Info("notes: note saved", "title", note.Title)
	return schema.TextReply(fmt.Sprintf("Saved your note %q.", note.Title)), nil
}

func (h *NoteHandler) get(ctx context.Context, input string) (schema.Reply, error) {
	query, err := h.optimizer.Optimize(ctx, input)
	if err != nil {
		return schema.Reply{}, err
	}
	matches, err := h.store.Query(ctx, query, h.topN)
	if err != nil {
		return schema.Reply{}, fmt.Errorf("query notes: %w", err)
	}
	slog.Debug("notes: query", "query", query, "matches", len(matches))
	if len(matches) == 0 {
		return schema.TextReply(NoteNotFoundMessage), nil
	}

	type found struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Saved   string `json:"saved"`
	}
	out := make([]found, len(matches))
	for i, m := range matches {
		out[i] = found{Title: m.Note.Title, Content: m.Note.Content, Saved: m.Note.Timestamp.Format(time.RFC1123)}
	}
	blob, err := json.Marshal(out)
	if err != nil {
		return schema.Reply{}, fmt.Errorf("marshal notes: %w", err)
	}
	return h.sum.Summarize(ctx, string(blob), input)
}
