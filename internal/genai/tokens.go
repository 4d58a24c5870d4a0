package genai

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func loadCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("Tokenizer unavailable, falling back to length estimate")
			return
		}
		codec = c
	})
	return codec
}

// CountTokens returns the cl100k token count of text.
// Without a codec it estimates four bytes per token.
func CountTokens(text string) int {
	c := loadCodec()
	if c == nil {
		return (len(text) + 3) / 4
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}

// TruncateTokens cuts text to at most maxTokens tokens.
func TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	c := loadCodec()
	if c == nil {
		if limit := maxTokens * 4; len(text) > limit {
			return text[:limit]
		}
		return text
	}
	ids, _, err := c.Encode(text)
	if err != nil || len(ids) <= maxTokens {
		return text
	}
	out, err := c.Decode(ids[:maxTokens])
	if err != nil {
		return text
	}
	return out
}
