package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/shared/llmutils"
)

// ErrToolNotBuilt means the model never produced arguments matching the
// tool's shape within the retry budget.
var ErrToolNotBuilt = errors.New("tool could not be built")

var (
	errNoJSON      = errors.New("reply holds no JSON object")
	errKeyMismatch = errors.New("argument keys do not match the tool")
)

// ArgumentFiller asks the model to fill a tool's arguments from free text.
type ArgumentFiller struct {
	llm         schema.CompletionService
	prompts     *ContextBuilder
	maxAttempts int
}

// NewArgumentFiller returns a filler; maxAttempts <= 0 means MaxAttempts.
func NewArgumentFiller(llm schema.CompletionService, prompts *ContextBuilder, maxAttempts int) *ArgumentFiller {
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	return &ArgumentFiller{llm: llm, prompts: prompts, maxAttempts: maxAttempts}
}

// FillArguments returns tool's arguments filled from input. Replies that do
// not parse, or whose key set differs from the tool's, are retried. After
// the last attempt the error wraps ErrToolNotBuilt.
func (f *ArgumentFiller) FillArguments(ctx context.Context, tool schema.ToolSchema, input string) (schema.FilledTool, error) {
	msgs, err := f.prompts.FillMessages(tool, input)
	if err != nil {
		return schema.FilledTool{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return schema.FilledTool{}, err
		}

		reply, err := f.llm.Complete(ctx, msgs)
		if err != nil {
			slog.Warn("filler: completion failed", "tool", tool.Name, "attempt", attempt, "err", err)
			lastErr = err
			continue
		}

		args, err := parseArguments(reply, tool.Arguments)
		if err != nil {
			slog.Warn("filler: reply rejected", "tool", tool.Name, "attempt", attempt, "err", err)
			lastErr = err
			continue
		}
		return schema.FilledTool{Schema: tool, Args: args}, nil
	}
	return schema.FilledTool{}, fmt.Errorf("%w: %s after %d attempts: %v", ErrToolNotBuilt, tool.Name, f.maxAttempts, lastErr)
}

// parseArguments reads the argument object from a reply. The reply is either
// the full tool JSON with a "toolArgs" member or the bare argument object.
func parseArguments(reply string, shape schema.ArgumentShape) (schema.Arguments, error) {
	raw := llmutils.ExtractJSONObject(reply)
	if raw == "" {
		return nil, errNoJSON
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	argsJSON := json.RawMessage(raw)
	if inner, ok := top["toolArgs"]; ok {
		argsJSON = inner
	}

	var args schema.Arguments
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	if args == nil {
		args = schema.Arguments{}
	}
	if !shape.Matches(args) {
		return nil, fmt.Errorf("%w: got %v, want %v", errKeyMismatch, args.Keys(), shape.Keys())
	}
	return args, nil
}
