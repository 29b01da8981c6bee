// Package prompt projects a game snapshot into the messages sent to a model.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// SystemInstruction is sent as the system message on every request.
const SystemInstruction = `You are a blackjack expert. Answer with brief commentary if you like, ` +
	`then end with a single JSON object: {"action":"hit|stand|double|split","reason":"brief explanation"}.`

// noDealerCard is rendered when the dealer has no visible card yet.
const noDealerCard = "none"

// Prompt is the model input derived from one snapshot.
type Prompt struct {
	System string
	User   string

	// AllowedActions lists the moves legal for this snapshot, in the order
	// they appear in the user content.
	AllowedActions []domain.Action
}

// Build renders the prompt for a snapshot. It is a pure function of s.
func Build(s domain.GameSnapshot) Prompt {
	allowed := AllowedActions(s)

	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}

	dealer := noDealerCard
	if s.DealerUpCard != nil {
		dealer = s.DealerUpCard.Token()
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "Player hand: %s (total %d)\n", handTokens(s.Hand), s.Total)
	fmt.Fprintf(&b, "Dealer upcard: %s\n", dealer)
	fmt.Fprintf(&b, "Allowed actions now: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Bet: %s, Bank: %s\n", formatAmount(s.Bet), formatAmount(s.Bank))
	b.WriteString("\nTask: Recommend the best blackjack action based on basic strategy. ")
	b.WriteString("You may add one or two sentences of commentary first, then output a JSON object:\n")
	b.WriteString(`{"action":"<one of hit|stand|double|split>","reason":"<brief explanation>"}`)
	b.WriteString("\n\nOnly choose an allowed action. Be encouraging!")

	return Prompt{
		System:         SystemInstruction,
		User:           b.String(),
		AllowedActions: allowed,
	}
}

// Messages returns the chat messages for the prompt.
func (p Prompt) Messages() []domain.Message {
	return []domain.Message{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.User},
	}
}

// AllowedActions returns hit and stand, plus double and split when the
// snapshot permits them.
func AllowedActions(s domain.GameSnapshot) []domain.Action {
	actions := []domain.Action{domain.ActionHit, domain.ActionStand}
	if s.CanDouble {
		actions = append(actions, domain.ActionDouble)
	}
	if s.CanSplit {
		actions = append(actions, domain.ActionSplit)
	}
	return actions
}

func handTokens(cards []domain.Card) string {
	tokens := make([]string, len(cards))
	for i, c := range cards {
		tokens[i] = c.Token()
	}
	return strings.Join(tokens, " ")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
