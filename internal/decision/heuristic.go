package decision

import (
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// Heuristic picks an action by keyword over the lower-cased text, in the
// order double, split, stand, hit. Double and split are only returned when
// the corresponding capability is set.
func Heuristic(text string, canDouble, canSplit bool) domain.Action {
	m := strings.ToLower(text)
	switch {
	case canDouble && strings.Contains(m, "double"):
		return domain.ActionDouble
	case canSplit && strings.Contains(m, "split"):
		return domain.ActionSplit
	case strings.Contains(m, "stand"):
		return domain.ActionStand
	case strings.Contains(m, "hit"):
		return domain.ActionHit
	default:
		return domain.ActionUnknown
	}
}

// Result is the outcome of Extract.
type Result struct {
	Action     domain.Action
	Rationale  string
	Extraction domain.Extraction
}

// Extract runs Parse and, when it finds nothing, Heuristic gated by the
// snapshot's capabilities.
func Extract(text string, s domain.GameSnapshot) Result {
	if d, ok := Parse(text); ok {
		return Result{Action: d.Action, Rationale: d.Reason, Extraction: domain.ExtractionParsed}
	}

	action := Heuristic(text, s.CanDouble, s.CanSplit)
	if action == domain.ActionUnknown {
		return Result{Action: action, Extraction: domain.ExtractionNone}
	}
	return Result{Action: action, Extraction: domain.ExtractionHeuristic}
}
