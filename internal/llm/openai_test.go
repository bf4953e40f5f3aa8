package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeCompletions serves scripted chat completion replies and records requests.
type fakeCompletions struct {
	mu       sync.Mutex
	replies  []string
	requests []map[string]any
}

func (f *fakeCompletions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()

	reply := f.replies[len(f.replies)-1]
	if n <= len(f.replies) {
		reply = f.replies[n-1]
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func completion(message string, finish string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "test-model",
		"choices": [{"index": 0, "finish_reason": %q, "message": %s}]
	}`, finish, message)
}

func textReply(text string) string {
	msg, _ := json.Marshal(map[string]any{"role": "assistant", "content": text})
	return completion(string(msg), "stop")
}

func toolReply(id, name, args string) string {
	msg, _ := json.Marshal(map[string]any{
		"role":    "assistant",
		"content": nil,
		"tool_calls": []map[string]any{{
			"id":   id,
			"type": "function",
			"function": map[string]any{
				"name":      name,
				"arguments": args,
			},
		}},
	})
	return completion(string(msg), "tool_calls")
}

func newTestLMStudio(t *testing.T, fake *fakeCompletions) *LMStudioClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewLMStudioClient("test-model", srv.URL, "test-key")
	if err != nil {
		t.Fatalf("NewLMStudioClient failed: %v", err)
	}
	return client
}

var listTool = Tool{
	Name:        "list_items",
	Description: "List items",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	},
}

func TestChat(t *testing.T) {
	fake := &fakeCompletions{replies: []string{textReply("hello")}}
	client := newTestLMStudio(t, fake)

	got, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Chat() = %q, want hello", got)
	}
}

func TestChatJSON(t *testing.T) {
	fake := &fakeCompletions{replies: []string{textReply("```json\n{\"ok\": true}\n```")}}
	client := newTestLMStudio(t, fake)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, &out); err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	if !out.OK {
		t.Error("expected ok=true")
	}
}

func TestChatWithTools(t *testing.T) {
	fake := &fakeCompletions{replies: []string{
		toolReply("call_1", "list_items", `{"date":"2025-01-09"}`),
		textReply("You have one meeting."),
	}}
	client := newTestLMStudio(t, fake)

	var calls []ToolCall
	exec := func(ctx context.Context, call ToolCall) (string, error) {
		calls = append(calls, call)
		return `[{"title":"Standup"}]`, nil
	}

	got, err := client.ChatWithTools(context.Background(),
		[]Message{{Role: RoleUser, Content: "what's on?"}},
		[]Tool{listTool}, exec)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if got != "You have one meeting." {
		t.Errorf("ChatWithTools() = %q", got)
	}

	if len(calls) != 1 || calls[0].Name != "list_items" || calls[0].ID != "call_1" || calls[0].Arguments != `{"date":"2025-01-09"}` {
		t.Fatalf("calls = %+v", calls)
	}

	if len(fake.requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(fake.requests))
	}
	if tools, _ := fake.requests[0]["tools"].([]any); len(tools) != 1 {
		t.Errorf("first request tools = %v", fake.requests[0]["tools"])
	}

	msgs, _ := fake.requests[1]["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(msgs))
	}
	toolMsg, _ := msgs[2].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_1" || toolMsg["content"] != `[{"title":"Standup"}]` {
		t.Errorf("tool message = %v", toolMsg)
	}
}

func TestChatWithTools_ExecutorErrorGoesToModel(t *testing.T) {
	fake := &fakeCompletions{replies: []string{
		toolReply("call_1", "nope", `{}`),
		textReply("Sorry, I could not do that."),
	}}
	client := newTestLMStudio(t, fake)

	exec := func(ctx context.Context, call ToolCall) (string, error) {
		return "", errors.New("unknown tool")
	}

	got, err := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, []Tool{listTool}, exec)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if got != "Sorry, I could not do that." {
		t.Errorf("ChatWithTools() = %q", got)
	}

	msgs, _ := fake.requests[1]["messages"].([]any)
	toolMsg, _ := msgs[len(msgs)-1].(map[string]any)
	if toolMsg["content"] != `{"error":"unknown tool"}` {
		t.Errorf("tool result = %v", toolMsg["content"])
	}
}

func TestChatWithTools_RoundLimit(t *testing.T) {
	fake := &fakeCompletions{replies: []string{toolReply("call_x", "list_items", `{}`)}}
	client := newTestLMStudio(t, fake)

	exec := func(ctx context.Context, call ToolCall) (string, error) { return "[]", nil }

	_, err := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "loop"}}, []Tool{listTool}, exec)
	if !errors.Is(err, ErrToolRoundsExceeded) {
		t.Fatalf("err = %v, want ErrToolRoundsExceeded", err)
	}
	if len(fake.requests) != MaxToolRounds {
		t.Errorf("got %d requests, want %d", len(fake.requests), MaxToolRounds)
	}
}

func TestToLangChainTools(t *testing.T) {
	got := toLangChainTools([]Tool{listTool})
	if len(got) != 1 || got[0].Type != "function" || got[0].Function.Name != "list_items" {
		t.Errorf("toLangChainTools() = %+v", got)
	}
}
