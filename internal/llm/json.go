package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSON extracts the JSON payload of a model reply into result.
func decodeJSON(content string, result any) error {
	if err := json.Unmarshal([]byte(extractJSON(content)), result); err != nil {
		return fmt.Errorf("parsing JSON response: %w (content: %s)", err, content)
	}
	return nil
}

// extractJSON attempts to extract JSON from a string that may contain markdown formatting.
func extractJSON(s string) string {
	for _, fence := range []string{"```json", "```"} {
		if body, ok := fencedBlock(s, fence); ok {
			return body
		}
	}

	// Raw JSON: first balanced {...} or [...]
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		depth := 0
		for j := i; j < len(s); j++ {
			switch s[j] {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return s[i : j+1]
				}
			}
		}
	}

	return s
}

// fencedBlock returns the body of the first code block opened by fence.
func fencedBlock(s, fence string) (string, bool) {
	idx := strings.Index(s, fence)
	if idx == -1 {
		return "", false
	}
	rest := strings.TrimLeft(s[idx+len(fence):], "\r\n")
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimRight(rest[:end], "\r\n"), true
}
