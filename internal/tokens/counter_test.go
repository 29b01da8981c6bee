package tokens

import (
	"testing"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

func TestCounter_Count(t *testing.T) {
	c := NewCounter()

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{"empty", "", 0, 0},
		{"single word", "hello", 1, 1},
		{"sentence", "Player hand: T♠ 6♦ (total 16)", 8, 20},
		{"json", `{"action":"hit","reason":"16 vs 10"}`, 8, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Count(tt.text)
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("Count(%q) = %d, want between %d and %d", tt.text, got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestCounter_CountMessages(t *testing.T) {
	c := NewCounter()

	if got := c.CountMessages(nil); got != 0 {
		t.Errorf("CountMessages(nil) = %d, want 0", got)
	}

	msgs := []domain.Message{
		{Role: "system", Content: "hello"},
		{Role: "user", Content: "hello"},
	}
	// Two messages of one token each plus overhead.
	want := replyPriming + 2*(tokensPerMessage+tokensPerRole+1)
	if got := c.CountMessages(msgs); got != want {
		t.Errorf("CountMessages() = %d, want %d", got, want)
	}
}

func TestEstimate(t *testing.T) {
	if got := estimate("abcdefgh"); got != 2 {
		t.Errorf("estimate() = %d, want 2", got)
	}
}
