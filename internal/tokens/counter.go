// Package tokens estimates transcript sizes so chat context can be kept
// under a budget. Counts are approximate for Gemini models; cl100k_base is
// close enough for trimming decisions.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/repairlens/repairlens/internal/domain"
)

// Counter counts tokens in text using a cached tiktoken codec.
type Counter struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter creates a counter. The codec is loaded lazily on first use.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return c.codec, c.err
}

// CountText returns the approximate token count of text. Falls back to a
// bytes/4 estimate when the codec is unavailable.
func (c *Counter) CountText(text string) int {
	codec, err := c.getCodec()
	if err != nil {
		return len(text) / 4
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

// turnOverhead approximates per-turn framing cost (role tag plus separators).
const turnOverhead = 4

// CountTurn returns the approximate token cost of one transcript turn.
func (c *Counter) CountTurn(turn domain.Turn) int {
	return c.CountText(turn.Text) + turnOverhead
}

// TrimTranscript drops the oldest turns until the transcript fits the
// budget. The newest turns always survive; a single oversized turn is kept
// rather than sending an empty context. Budget <= 0 disables trimming.
func (c *Counter) TrimTranscript(t domain.Transcript, budget int) domain.Transcript {
	if budget <= 0 || len(t) == 0 {
		return t
	}

	total := 0
	start := len(t)
	for i := len(t) - 1; i >= 0; i-- {
		cost := c.CountTurn(t[i])
		if total+cost > budget && start < len(t) {
			break
		}
		total += cost
		start = i
	}
	return t[start:]
}
