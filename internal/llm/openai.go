package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// chatCompletions implements Client on any OpenAI-compatible endpoint.
// The copilot, lmstudio and openai providers share it.
type chatCompletions struct {
	client openai.Client
	model  string
	name   string // provider name used in error messages
}

// OpenAIClient implements the Client interface using the OpenAI API.
type OpenAIClient struct {
	*chatCompletions
	baseURL string
}

// NewOpenAIClient creates a client for the OpenAI API or a compatible gateway.
// An empty apiKey falls back to OPENAI_API_KEY.
func NewOpenAIClient(model, baseURL, apiKey string) (*OpenAIClient, error) {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIClient{
		chatCompletions: &chatCompletions{client: client, model: model, name: ProviderOpenAI},
		baseURL:         baseURL,
	}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case RoleSystem:
			out[i] = openai.SystemMessage(msg.Content)
		case RoleAssistant:
			out[i] = openai.AssistantMessage(msg.Content)
		default:
			out[i] = openai.UserMessage(msg.Content)
		}
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		}
	}
	return out
}

// Chat sends messages to the LLM and returns the response.
func (c *chatCompletions) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", c.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// ChatJSON sends messages and parses the response as JSON into the provided type.
func (c *chatCompletions) ChatJSON(ctx context.Context, messages []Message, result any) error {
	content, err := c.Chat(ctx, messages)
	if err != nil {
		return err
	}
	return decodeJSON(content, result)
}

// ChatWithTools runs the tool-calling loop against the completions endpoint.
func (c *chatCompletions) ChatWithTools(ctx context.Context, messages []Message, tools []Tool, exec ToolExecutor) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	}

	for round := 0; round < MaxToolRounds; round++ {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("%s chat completion: %w", c.name, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response choices returned")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			result := runTool(ctx, exec, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
			params.Messages = append(params.Messages, openai.ToolMessage(result, tc.ID))
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	return "", ErrToolRoundsExceeded
}
