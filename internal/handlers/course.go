package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/tools"
)

const coursePrompt = `You write extended courses. Organise the course into modules with headings.
Every module holds several long paragraphs of real teaching text, not a summary.`

// Course streams a long-form course built from the filled topic, audience
// and format.
func Course(llm schema.CompletionService) tools.Handler {
	return func(ctx context.Context, input string, filled schema.FilledTool) (schema.Reply, error) {
		var b strings.Builder
		fmt.Fprintf(&b, "Request: %s\n", input)
		for _, field := range []struct{ label, key string }{
			{"Topic", "topic"},
			{"Target audience", "targetAudience"},
			{"Course format", "courseFormat"},
		} {
			if v := strings.TrimSpace(filled.String(field.key)); v != "" {
				fmt.Fprintf(&b, "%s: %s\n", field.label, v)
			}
		}
		for _, rule := range filled.Schema.Rules {
			fmt.Fprintf(&b, "Rule: %s\n", rule)
		}

		msgs := schema.NewMessages()
		msgs.AddSystem(coursePrompt)
		msgs.AddUser(b.String())

		stream, err := llm.Stream(ctx, msgs)
		if err != nil {
			return schema.Reply{}, fmt.Errorf("course completion: %w", err)
		}
		return schema.StreamReply(stream), nil
	}
}
