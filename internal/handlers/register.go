package handlers

import (
	"log/slog"
	"time"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/tools"
)

// Deps are the collaborators of the built-in handlers. A nil Weather or
// Notes leaves that tool unregistered, so it routes to plain chat.
type Deps struct {
	LLM     schema.CompletionService
	Weather WeatherSource
	Notes   schema.NoteStore
	TopN    int
	Now     func() time.Time
}

// Register adds every built-in handler whose tool is in catalog, using the
// catalog's schema so overlay descriptions and rules apply.
func Register(b *tools.RegistryBuilder, catalog *tools.Catalog, d Deps) *tools.RegistryBuilder {
	sum := NewSummarizer(d.LLM)

	handlers := map[string]tools.Handler{
		tools.TimeTool:   Time(d.Now, sum),
		tools.CourseTool: Course(d.LLM),
	}
	if d.Weather != nil {
		handlers[tools.WeatherTool] = Weather(d.Weather, sum)
	}
	if d.Notes != nil {
		handlers[tools.NoteTool] = NewNoteHandler(d.Notes, NewQueryOptimizer(d.LLM), sum, d.TopN, d.Now).Handle
	}

	for _, name := range catalog.Names() {
		h, ok := handlers[name]
		if !ok {
			continue
		}
		s, _ := catalog.Lookup(name)
		b.WithTool(s, h)
	}
	for name := range handlers {
		if _, ok := catalog.Lookup(name); !ok {
			slog.Debug("handlers: tool not in catalog", "tool", name)
		}
	}
	return b
}
