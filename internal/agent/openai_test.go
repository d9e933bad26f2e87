package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolCallResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "logprobs": null,
    "message": {
      "role": "assistant",
      "content": null,
      "refusal": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "run_sql", "arguments": "{\"query\":\"SELECT 1\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallResponse))
	}))
	defer srv.Close()

	llm := NewOpenAI(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", BaseURL: srv.URL + "/v1"})
	c, err := llm.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: toolRunSQL, Arguments: `{"query":"SELECT 0"}`}}},
		{Role: RoleTool, ToolCallID: "call_0", Content: "0"},
	}, []ToolSpec{runSQLTool()})
	require.NoError(t, err)

	assert.Equal(t, "", c.Content)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Name: "run_sql", Arguments: `{"query":"SELECT 1"}`}, c.ToolCalls[0])

	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, 0.0, body["temperature"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assistant := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	calls := assistant["tool_calls"].([]any)
	assert.Equal(t, "call_0", calls[0].(map[string]any)["id"])
	tool := msgs[3].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "call_0", tool["tool_call_id"])

	tools := body["tools"].([]any)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "run_sql", fn["name"])
}

func TestOpenAICompleteSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	llm := NewOpenAI(OpenAIConfig{APIKey: "bad", Model: "gpt-4o", BaseURL: srv.URL})
	_, err := llm.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o","choices":[]}`))
	}))
	defer srv.Close()

	llm := NewOpenAI(OpenAIConfig{APIKey: "k", Model: "gpt-4o", BaseURL: srv.URL})
	_, err := llm.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil)
	assert.ErrorIs(t, err, ErrNoChoices)
}
