// Package handlers implements the built-in tool handlers.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/shared/llmutils"
)

const summarizerPrompt = `You answer a user's question from raw JSON data returned by a service.
Answer briefly in plain spoken language. Never mention JSON, keys, fields or the data format.
If the data does not answer the question, say so in one sentence.`

const optimizerPrompt = `Rewrite the user's request as a short search query for their saved notes.
Respond with the query only, a few words, nothing else.`

// Summarizer turns tool data into a short streamed answer.
type Summarizer struct {
	llm schema.CompletionService
}

func NewSummarizer(llm schema.CompletionService) *Summarizer {
	return &Summarizer{llm: llm}
}

// Summarize streams an answer to question drawn from data.
func (s *Summarizer) Summarize(ctx context.Context, data, question string) (schema.Reply, error) {
	msgs := schema.NewMessages()
	msgs.AddSystem(summarizerPrompt)
	msgs.AddUser(fmt.Sprintf("Data: %s\n\nQuestion: %s", data, question))

	stream, err := s.llm.Stream(ctx, msgs)
	if err != nil {
		return schema.Reply{}, fmt.Errorf("summarize: %w", err)
	}
	return schema.StreamReply(stream), nil
}

// QueryOptimizer shortens an utterance into a note search query.
type QueryOptimizer struct {
	llm schema.CompletionService
}

func NewQueryOptimizer(llm schema.CompletionService) *QueryOptimizer {
	return &QueryOptimizer{llm: llm}
}

// Optimize returns the search query for input. An empty rewrite falls back
// to input itself.
func (q *QueryOptimizer) Optimize(ctx context.Context, input string) (string, error) {
	msgs := schema.NewMessages()
	msgs.AddSystem(optimizerPrompt)
	msgs.AddUser(input)

	reply, err := q.llm.Complete(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("optimize query: %w", err)
	}
	query := strings.Trim(llmutils.StripThink(reply), " \t\r\n\"'")
	return llmutils.StringOrDefault(query, input), nil
}
