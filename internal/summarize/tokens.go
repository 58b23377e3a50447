package summarize

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/weaviate/tiktoken-go"
)

const truncatedMarker = "\n\n[... truncated]"

// TokenCounter measures text in cl100k_base tokens. When the encoding cannot
// be loaded it falls back to an estimate of four bytes per token.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (c *TokenCounter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Debug().Err(err).Msg("tiktoken unavailable, estimating token counts")
			return
		}
		c.enc = enc
	})
	return c.enc
}

func (c *TokenCounter) Count(text string) int {
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// Truncate cuts text to at most max tokens. A max of zero or less disables
// truncation.
func (c *TokenCounter) Truncate(text string, max int) (string, bool) {
	if max <= 0 || text == "" {
		return text, false
	}
	if enc := c.encoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= max {
			return text, false
		}
		return enc.Decode(tokens[:max]) + truncatedMarker, true
	}

	r := []rune(text)
	if len(r) <= max*4 {
		return text, false
	}
	return string(r[:max*4]) + truncatedMarker, true
}
