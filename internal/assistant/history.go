package assistant

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/chronoflow/chronoflow/internal/llm"
)

// DefaultHistoryTokens bounds the prior conversation sent with each request.
const DefaultHistoryTokens = 3000

// TokenCounter estimates the number of tokens in a string.
type TokenCounter func(string) int

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// TiktokenCounter counts with the cl100k_base encoding, falling back to
// ApproxTokens when the encoding cannot be loaded.
func TiktokenCounter(s string) int {
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if enc == nil {
		return ApproxTokens(s)
	}
	return len(enc.Encode(s, nil, nil))
}

// ApproxTokens estimates four characters per token.
func ApproxTokens(s string) int {
	return (len(s) + 3) / 4
}

// trimHistory keeps the most recent messages whose total fits budget.
// System messages from the client are dropped; the assistant supplies its own.
func trimHistory(history []llm.Message, budget int, count TokenCounter) []llm.Message {
	var kept []llm.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		n := count(m.Content)
		if used+n > budget {
			break
		}
		used += n
		kept = append(kept, m)
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
