// Package decision extracts a blackjack move from free-form model output.
//
// Extraction runs in two stages. Parse looks for a JSON object naming a
// valid action, preferring the last one in the text since models tend to
// put commentary before the final answer. When that fails, Heuristic falls
// back to keyword matching over the raw text.
package decision

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

var (
	// fencePattern matches code fence markers, with or without a language tag.
	fencePattern = regexp.MustCompile("```[A-Za-z0-9_+-]*")

	// objectPattern matches the shortest brace-delimited fragment, across lines.
	objectPattern = regexp.MustCompile(`(?s)\{.*?\}`)
)

// Parse returns the decision encoded in the rightmost JSON object of text
// whose action is hit, stand, double or split. Malformed fragments and
// fragments with other actions are skipped. ok is false when no fragment
// qualifies.
func Parse(text string) (d domain.Decision, ok bool) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))

	candidates := objectPattern.FindAllString(cleaned, -1)
	for i := len(candidates) - 1; i >= 0; i-- {
		if d, ok := decode(candidates[i]); ok {
			return d, true
		}
	}
	return domain.Decision{}, false
}

func decode(fragment string) (domain.Decision, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(fragment), &obj); err != nil {
		return domain.Decision{}, false
	}

	raw, _ := obj["action"].(string)
	action := domain.Action(strings.ToLower(raw))
	if !action.Valid() {
		return domain.Decision{}, false
	}

	reason, _ := obj["reason"].(string)
	return domain.Decision{Action: action, Reason: reason}, true
}
