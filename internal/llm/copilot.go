package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	copilotTokenURL = "https://api.github.com/copilot_internal/v2/token"
	copilotBaseURL  = "https://api.githubcopilot.com"
	userAgent       = "ChronoFlow/1.0"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

// CopilotClient talks to GitHub Copilot's OpenAI-compatible chat API.
type CopilotClient struct {
	*chatCompletions
	baseURL   string
	expiresAt time.Time
}

// copilotToken is the token exchange response.
type copilotToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewCopilotClient exchanges the local GitHub credential for a Copilot
// session token. An empty baseURL uses the public Copilot endpoint.
func NewCopilotClient(model, baseURL string) (*CopilotClient, error) {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = copilotBaseURL
	}

	githubToken, err := LoadGitHubToken()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tok, err := exchangeToken(ctx, http.DefaultClient, copilotTokenURL, githubToken)
	if err != nil {
		return nil, fmt.Errorf("exchanging copilot token: %w", err)
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(tok.Token),
		option.WithHeader("Editor-Version", userAgent),
		option.WithHeader("Editor-Plugin-Version", userAgent),
		option.WithHeader("Copilot-Integration-Id", "vscode-chat"),
	)

	return &CopilotClient{
		chatCompletions: &chatCompletions{client: client, model: model, name: ProviderCopilot},
		baseURL:         baseURL,
		expiresAt:       time.Unix(tok.ExpiresAt, 0),
	}, nil
}

// ExpiresAt reports when the Copilot session token stops working.
func (c *CopilotClient) ExpiresAt() time.Time {
	return c.expiresAt
}

func exchangeToken(ctx context.Context, hc *http.Client, url, githubToken string) (*copilotToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+githubToken)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok copilotToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("empty token in response")
	}
	return &tok, nil
}
