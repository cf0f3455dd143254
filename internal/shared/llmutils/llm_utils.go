package llmutils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reThink = regexp.MustCompile(`(?is)<think>.*?</think>`)
	reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Truncate shortens a string to at most n runes, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ExtractJSONObject returns the outermost {...} span of a model reply,
// dropping think blocks, markdown fences and surrounding prose.
// It returns "" when the reply holds no object.
func ExtractJSONObject(s string) string {
	s = StripThink(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// FirstWord normalises a one-word answer: the first token of the reply with
// quotes, backticks and trailing punctuation removed. Case is preserved.
func FirstWord(s string) string {
	fields := strings.Fields(StripThink(s))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "\"'`*.,:;!?()[]")
}
