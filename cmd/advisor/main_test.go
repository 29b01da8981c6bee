package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

func TestReadSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"yaml", `
hand:
  - {rank: "8", suit: "♠"}
  - {rank: "8", suit: "♦"}
total: 16
dealerUpCard: {rank: "9", suit: "♣"}
canSplit: true
bet: 25
bank: 475
`},
		{"json", `{"hand":[{"rank":"8","suit":"♠"},{"rank":"8","suit":"♦"}],"total":16,"dealerUpCard":{"rank":"9","suit":"♣"},"canSplit":true,"bet":25,"bank":475}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap")
			require.NoError(t, os.WriteFile(path, []byte(tt.input), 0o644))

			snap, err := readSnapshot(path, nil)
			require.NoError(t, err)

			assert.Equal(t, []domain.Card{{Rank: "8", Suit: "♠"}, {Rank: "8", Suit: "♦"}}, snap.Hand)
			assert.Equal(t, 16, snap.Total)
			require.NotNil(t, snap.DealerUpCard)
			assert.Equal(t, "9", snap.DealerUpCard.Rank)
			assert.True(t, snap.CanSplit)
			assert.False(t, snap.CanDouble)
			assert.Equal(t, 475.0, snap.Bank)
		})
	}
}

func TestReadSnapshot_Stdin(t *testing.T) {
	snap, err := readSnapshot("-", strings.NewReader("total: 12\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, snap.Total)
	assert.Nil(t, snap.DealerUpCard)
}

func TestReadSnapshot_Errors(t *testing.T) {
	_, err := readSnapshot(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	_, err = readSnapshot("-", strings.NewReader("hand: [unterminated"))
	assert.Error(t, err)
}

func TestHashKeyCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-key", "test"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")
}
