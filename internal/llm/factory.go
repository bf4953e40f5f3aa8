package llm

import (
	"fmt"
	"strings"
)

// Supported providers.
const (
	ProviderOpenAI   = "openai"
	ProviderCopilot  = "copilot"
	ProviderOllama   = "ollama"
	ProviderLMStudio = "lmstudio"
)

// NewClient builds the client for a configured provider. An empty
// provider means copilot.
func NewClient(provider, model, baseURL, apiKey string) (Client, error) {
	switch normalizeProvider(provider) {
	case ProviderCopilot:
		return NewCopilotClient(model, baseURL)
	case ProviderOpenAI:
		return NewOpenAIClient(model, baseURL, apiKey)
	case ProviderOllama:
		return NewOllamaClient(model, baseURL)
	case ProviderLMStudio:
		return NewLMStudioClient(model, baseURL, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func normalizeProvider(p string) string {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "":
		return ProviderCopilot
	case "lm-studio", "llmstudio":
		return ProviderLMStudio
	default:
		return p
	}
}
