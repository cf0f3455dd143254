package agent

import (
	"regexp"
	"strings"

	"github.com/crystaldolphin/murmur/internal/session"
)

// FollowUpDetector decides by keyword whether an utterance continues the
// previous tool's answer. It is a shallow heuristic: any listed word found
// anywhere in the input, ignoring case, counts.
type FollowUpDetector struct {
	patterns map[string]*regexp.Regexp // lower-cased tool name → alternation
}

// NewFollowUpDetector compiles one pattern per tool. Tools without keywords
// never produce follow-ups.
func NewFollowUpDetector(keywords map[string][]string) *FollowUpDetector {
	d := &FollowUpDetector{patterns: make(map[string]*regexp.Regexp, len(keywords))}
	for tool, words := range keywords {
		quoted := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				quoted = append(quoted, regexp.QuoteMeta(w))
			}
		}
		if len(quoted) == 0 {
			continue
		}
		d.patterns[strings.ToLower(tool)] = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	}
	return d
}

// IsFollowUp is true when the last turn used candidate, produced a
// non-empty result, and input mentions one of candidate's keywords.
func (d *FollowUpDetector) IsFollowUp(c session.Context, candidate, input string) bool {
	if !c.HasLastTool() || !strings.EqualFold(c.LastToolName, candidate) {
		return false
	}
	if strings.TrimSpace(c.LastToolResult) == "" {
		return false
	}
	re, ok := d.patterns[strings.ToLower(candidate)]
	if !ok {
		return false
	}
	return re.MatchString(input)
}
