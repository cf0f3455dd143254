package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/shared/llmutils"
	"github.com/crystaldolphin/murmur/internal/tools"
)

// MaxAttempts bounds classifier retries in ToolSelector and ArgumentFiller.
const MaxAttempts = 3

// ToolSelector classifies an utterance into a tool name and has the model
// confirm the choice before accepting it.
type ToolSelector struct {
	llm         schema.CompletionService
	prompts     *ContextBuilder
	maxAttempts int
}

// NewToolSelector returns a selector; maxAttempts <= 0 means MaxAttempts.
func NewToolSelector(llm schema.CompletionService, prompts *ContextBuilder, maxAttempts int) *ToolSelector {
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	return &ToolSelector{llm: llm, prompts: prompts, maxAttempts: maxAttempts}
}

// SelectTool returns the catalog name of the chosen tool, or tools.DefaultTool.
// Each attempt is one classification plus, for catalogued tools, one
// validation. Errors count as failed attempts and are never returned.
func (s *ToolSelector) SelectTool(ctx context.Context, catalog *tools.Catalog, input string) string {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return tools.DefaultTool
		}

		reply, err := s.llm.Complete(ctx, s.prompts.ClassifyMessages(catalog, input))
		if err != nil {
			slog.Warn("selector: classification failed", "attempt", attempt, "err", err)
			continue
		}

		name := llmutils.FirstWord(reply)
		if name == "" || strings.EqualFold(name, tools.DefaultTool) {
			return tools.DefaultTool
		}
		tool, ok := catalog.Lookup(name)
		if !ok {
			slog.Debug("selector: unknown tool named", "tool", name)
			return tools.DefaultTool
		}

		valid, err := s.validate(ctx, tool, input)
		if err != nil {
			slog.Warn("selector: validation failed", "attempt", attempt, "tool", tool.Name, "err", err)
			continue
		}
		if valid {
			return tool.Name
		}
		slog.Debug("selector: choice rejected", "attempt", attempt, "tool", tool.Name)
	}
	return tools.DefaultTool
}

func (s *ToolSelector) validate(ctx context.Context, tool schema.ToolSchema, input string) (bool, error) {
	reply, err := s.llm.Complete(ctx, s.prompts.ValidateMessages(tool, input))
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(llmutils.StripThink(reply)))
	return answer == "yes", nil
}
