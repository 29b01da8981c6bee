package prompt

import (
	"strings"
	"testing"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

func allowedLine(t *testing.T, user string) string {
	t.Helper()
	for _, line := range strings.Split(user, "\n") {
		if strings.HasPrefix(line, "Allowed actions now: ") {
			return strings.TrimPrefix(line, "Allowed actions now: ")
		}
	}
	t.Fatalf("no allowed actions line in %q", user)
	return ""
}

func TestBuild_AllowedActions(t *testing.T) {
	tests := []struct {
		name      string
		canDouble bool
		canSplit  bool
		want      string
	}{
		{"neither", false, false, "hit, stand"},
		{"double only", true, false, "hit, stand, double"},
		{"split only", false, true, "hit, stand, split"},
		{"both", true, true, "hit, stand, double, split"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(domain.GameSnapshot{CanDouble: tt.canDouble, CanSplit: tt.canSplit})

			line := allowedLine(t, p.User)
			if line != tt.want {
				t.Errorf("allowed actions = %q, want %q", line, tt.want)
			}
			if got := strings.Contains(line, "double"); got != tt.canDouble {
				t.Errorf("double present = %v, canDouble = %v", got, tt.canDouble)
			}
			if got := strings.Contains(line, "split"); got != tt.canSplit {
				t.Errorf("split present = %v, canSplit = %v", got, tt.canSplit)
			}
			if len(p.AllowedActions) != len(strings.Split(tt.want, ", ")) {
				t.Errorf("AllowedActions = %v, want %q", p.AllowedActions, tt.want)
			}
		})
	}
}

func TestBuild_Content(t *testing.T) {
	snap := domain.GameSnapshot{
		Hand:         []domain.Card{{Rank: "9", Suit: "♥"}, {Rank: "7", Suit: "♣"}},
		Total:        16,
		DealerUpCard: &domain.Card{Rank: "T", Suit: "♠"},
		Bet:          25,
		Bank:         975.5,
	}

	p := Build(snap)

	for _, want := range []string{
		"Player hand: 9♥ 7♣ (total 16)",
		"Dealer upcard: T♠",
		"Bet: 25, Bank: 975.5",
		`{"action":"<one of hit|stand|double|split>","reason":"<brief explanation>"}`,
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("user content missing %q:\n%s", want, p.User)
		}
	}
	if p.System != SystemInstruction {
		t.Errorf("System = %q", p.System)
	}

	msgs := p.Messages()
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Errorf("Messages() = %+v", msgs)
	}
}

func TestBuild_EmptyHand(t *testing.T) {
	p := Build(domain.GameSnapshot{})

	if !strings.Contains(p.User, "Player hand:  (total 0)") {
		t.Errorf("empty hand not rendered as empty string:\n%s", p.User)
	}
	if !strings.Contains(p.User, "Dealer upcard: none") {
		t.Errorf("missing dealer placeholder:\n%s", p.User)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	snap := domain.GameSnapshot{
		Hand:      []domain.Card{{Rank: "8", Suit: "♦"}, {Rank: "8", Suit: "♠"}},
		Total:     16,
		CanSplit:  true,
		CanDouble: true,
	}
	if Build(snap).User != Build(snap).User {
		t.Error("Build is not deterministic")
	}
}
