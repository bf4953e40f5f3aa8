package llm

import (
	"cmp"
	"errors"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultLMStudioBaseURL = "http://localhost:1234/v1"
	// LM Studio ignores the key but the SDK requires one.
	lmStudioPlaceholderKey = "lm-studio"
)

// LMStudioClient talks to a local LM Studio server.
type LMStudioClient struct {
	*chatCompletions
	baseURL string
}

// NewLMStudioClient requires an explicit model since LM Studio serves
// whatever the user loaded. apiKey falls back to LMSTUDIO_API_KEY.
func NewLMStudioClient(model, baseURL, apiKey string) (*LMStudioClient, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("lm studio model is required")
	}
	baseURL = strings.TrimRight(cmp.Or(baseURL, defaultLMStudioBaseURL), "/")
	apiKey = cmp.Or(apiKey, os.Getenv("LMSTUDIO_API_KEY"), lmStudioPlaceholderKey)

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &LMStudioClient{
		chatCompletions: &chatCompletions{client: client, model: model, name: "lm studio"},
		baseURL:         baseURL,
	}, nil
}
