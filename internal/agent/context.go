package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/tools"
)

// ContextBuilder assembles the message lists sent to the model for each step
// of a turn. It holds no per-session state.
type ContextBuilder struct{}

// NewContextBuilder returns a ContextBuilder.
func NewContextBuilder() *ContextBuilder { return &ContextBuilder{} }

// ClassifyMessages asks the model to name one tool for input.
func (cb *ContextBuilder) ClassifyMessages(catalog *tools.Catalog, input string) schema.Messages {
	msgs := schema.NewMessages()
	msgs.AddSystem(fmt.Sprintf(`Based on the user input, determine the most appropriate tool from the available tools:
%s

If the user input asks for one tool's functionality, respond with that tool's name.
Otherwise respond with %q.
Respond with a single word.`, catalog.ListTools(), tools.DefaultTool))
	msgs.AddUser(fmt.Sprintf("User input: %q", input))
	return msgs
}

// ValidateMessages asks the model whether tool fits input, expecting yes or no.
func (cb *ContextBuilder) ValidateMessages(tool schema.ToolSchema, input string) schema.Messages {
	msgs := schema.NewMessages()
	msgs.AddSystem("You review tool choices for a voice assistant. Answer only with yes or no.")
	msgs.AddUser(fmt.Sprintf("User input: %q\nChosen tool: %s\nTool description: %s\nDoes the tool fit the user input?",
		input, tool.Name, tool.Description))
	return msgs
}

// FillMessages asks the model to return the tool JSON with argument values
// filled from input.
func (cb *ContextBuilder) FillMessages(tool schema.ToolSchema, input string) (schema.Messages, error) {
	blob, err := json.Marshal(tool)
	if err != nil {
		return schema.Messages{}, fmt.Errorf("marshal tool %s: %w", tool.Name, err)
	}
	msgs := schema.NewMessages()
	msgs.AddSystem("You are a JSON modifier. You receive a tool JSON and fill in the values of toolArgs from the user input. " +
		"Do not add or remove attributes, keep the structure and only fill values. Respond with the JSON only, nothing else.")
	msgs.AddUser(fmt.Sprintf("User input: %s\nTool JSON: %s", input, blob))
	return msgs, nil
}

// SystemPrompt introduces the assistant, its rules and its tools. It is sent
// once per session, on the first plain-chat turn.
func (cb *ContextBuilder) SystemPrompt(catalog *tools.Catalog) string {
	parts := []string{
		"You are a friendly voice assistant with a few tools available. Always give very short answers and do not push the tools on the user.",
	}
	if rules := catalog.ListRules(); rules != "" {
		parts = append(parts, rules)
	}
	parts = append(parts, "Tools:\n"+catalog.ListTools())
	return strings.Join(parts, "\n\n")
}

// FollowUpMessage wraps a follow-up question with the previous tool result.
func (cb *ContextBuilder) FollowUpMessage(tool, lastResult, input string) string {
	return fmt.Sprintf("Earlier answer from %s: %s\n\nFollow-up question: %s\nAnswer the follow-up using the earlier answer. Keep it short.",
		tool, lastResult, input)
}
