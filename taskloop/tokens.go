package taskloop

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// CountTokens returns the token count of text under the cl100k_base
// encoding. When the encoding cannot be loaded (offline hosts) it falls
// back to the chars/4 heuristic, which overestimates slightly for English
// text and therefore stays on the safe side of the budget.
func CountTokens(text string) int {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			tokenizer = enc
		}
	})
	if tokenizer == nil {
		return len(text) / 4
	}
	return len(tokenizer.Encode(text, nil, nil))
}
