// Package llm provides chat clients for the language-model providers the
// assistant can talk to, including tool-calling rounds.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxToolRounds bounds the number of model calls in one ChatWithTools exchange.
const MaxToolRounds = 5

// ErrToolRoundsExceeded is returned when the model keeps calling tools
// after MaxToolRounds calls.
var ErrToolRoundsExceeded = errors.New("model did not finish within the tool round limit")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool describes a function the model may call.
// Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ToolExecutor runs a tool call and returns the text handed back to the model.
// A returned error is reported to the model as the tool result; it does not
// abort the exchange.
type ToolExecutor func(ctx context.Context, call ToolCall) (string, error)

// Client defines the interface for LLM providers.
type Client interface {
	// Chat sends messages to the LLM and returns the response.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatJSON sends messages and parses the response as JSON into the provided type.
	ChatJSON(ctx context.Context, messages []Message, result any) error

	// ChatWithTools lets the model call tools through exec until it answers
	// in plain text, and returns that answer.
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool, exec ToolExecutor) (string, error)
}

// runTool executes call and folds an executor error into the tool result.
func runTool(ctx context.Context, exec ToolExecutor, call ToolCall) string {
	out, err := exec(ctx, call)
	if err != nil {
		return toolError(err)
	}
	return out
}

// toolError encodes err as the JSON object handed back to the model.
func toolError(err error) string {
	b, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return `{"error": "tool failed"}`
	}
	return string(b)
}
