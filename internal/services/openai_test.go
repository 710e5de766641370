package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sigma-backend/internal/models"
)

func historyPair(question, answer string) []models.Message {
	return []models.Message{
		{Role: models.RoleUser, Content: question},
		{Role: models.RoleAssistant, Content: answer},
	}
}

const toolCallResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "test-model",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "calculator", "arguments": "{\"expression\":\"2+2\"}"}
			}]
		}
	}]
}`

const finalResponse = `{
	"id": "chatcmpl-2",
	"object": "chat.completion",
	"model": "test-model",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "The answer is 4."}
	}]
}`

func TestOpenAIProvider_ToolLoop(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		switch calls {
		case 1:
			if !strings.Contains(string(body), "Calculate 2+2") {
				t.Errorf("Expected user message in first request, got %s", body)
			}
			fmt.Fprint(w, toolCallResponse)
		default:
			// The second request must carry the executed tool result.
			if !strings.Contains(string(body), "2+2 = 4") {
				t.Errorf("Expected tool result in follow-up request, got %s", body)
			}
			fmt.Fprint(w, finalResponse)
		}
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/")
	provider := NewOpenAIProvider(client, "test-model", NewToolRegistry(NewCalculatorTool()))

	comp, err := provider.Complete(context.Background(), CompletionRequest{Message: "Calculate 2+2"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if comp.Text != "The answer is 4." {
		t.Errorf("Expected final text, got %q", comp.Text)
	}
	if len(comp.ToolCalls) != 1 || comp.ToolCalls[0].Name != "calculator" {
		t.Errorf("Expected calculator tool call recorded, got %v", comp.ToolCalls)
	}
	if calls != 2 {
		t.Errorf("Expected 2 provider round trips, got %d", calls)
	}
}

func TestOpenAIProvider_DirectCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"tools"`) {
			t.Errorf("DisableTools request must not include tool definitions, got %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, finalResponse)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/")
	provider := NewOpenAIProvider(client, "test-model", NewToolRegistry(NewCalculatorTool()))

	comp, err := provider.Complete(context.Background(), CompletionRequest{
		Message:      "Calculate 2+2",
		DisableTools: true,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if comp.Text != "The answer is 4." {
		t.Errorf("Expected final text, got %q", comp.Text)
	}
}

func TestOpenAIProvider_UnsolicitedToolCallsIgnored(t *testing.T) {
	// A model may still emit tool calls on a direct completion even though
	// no tool definitions were sent; the content is used and no tool runs.
	const response = `{
		"id": "chatcmpl-3",
		"object": "chat.completion",
		"model": "test-model",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "The answer is 4.",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "calculator", "arguments": "{\"expression\":\"2+2\"}"}
				}]
			}
		}]
	}`

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/")
	provider := NewOpenAIProvider(client, "test-model", nil)

	comp, err := provider.Complete(context.Background(), CompletionRequest{
		Message:      "Calculate 2+2",
		DisableTools: true,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if comp.Text != "The answer is 4." {
		t.Errorf("Expected content used directly, got %q", comp.Text)
	}
	if len(comp.ToolCalls) != 0 {
		t.Errorf("Expected no tools executed, got %v", comp.ToolCalls)
	}
	if calls != 1 {
		t.Errorf("Expected a single round trip, got %d", calls)
	}
}

func TestOpenAIProvider_HistoryAndContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		for _, expected := range []string{"earlier question", "earlier answer", "remembered fact"} {
			if !strings.Contains(string(body), expected) {
				t.Errorf("Expected %q in request body", expected)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, finalResponse)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/")
	provider := NewOpenAIProvider(client, "test-model", NewToolRegistry(NewCalculatorTool()))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Context: "remembered fact",
		History: historyPair("earlier question", "earlier answer"),
		Message: "follow-up",
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
}
