package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/tools"
)

// Time fills dateTime with the current time and summarizes the tool JSON.
// now defaults to time.Now.
func Time(now func() time.Time, sum *Summarizer) tools.Handler {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, input string, filled schema.FilledTool) (schema.Reply, error) {
		filled = filled.With("dateTime", schema.StringValue(now().Format(time.RFC1123)))

		blob, err := json.Marshal(filled)
		if err != nil {
			return schema.Reply{}, fmt.Errorf("marshal time tool: %w", err)
		}
		return sum.Summarize(ctx, string(blob), input)
	}
}
