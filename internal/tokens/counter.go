// Package tokens estimates prompt sizes for logging and the journal.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// CharsPerToken is the ratio used when no encoder is available.
const CharsPerToken = 4.0

// Chat formatting overhead, following OpenAI's accounting for chat models:
// 3 tokens per message plus 1 for the role, and 3 to prime the reply.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	replyPriming     = 3
)

// Counter counts tokens with the cl100k_base encoding. None of the advisor's
// models ship a tiktoken vocabulary, so the counts are an estimate either way.
type Counter struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter creates a counter. The encoder is loaded on first use.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) load() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return c.codec, c.err
}

// Count returns the number of tokens in text. If the encoder cannot be
// loaded or fails, it falls back to len(text)/CharsPerToken.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.load()
	if err != nil {
		return estimate(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return estimate(text)
	}
	return len(ids)
}

// CountMessages counts a chat prompt including per-message overhead.
func (c *Counter) CountMessages(msgs []domain.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	total := replyPriming
	for _, m := range msgs {
		total += tokensPerMessage + tokensPerRole
		total += c.Count(m.Content)
	}
	return total
}

func estimate(text string) int {
	return int(float64(len(text)) / CharsPerToken)
}
