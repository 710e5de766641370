package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sigma-backend/internal/memory"
	"sigma-backend/internal/models"
	"sigma-backend/internal/repository"
)

// ─── Fakes ───

type fakeStore struct {
	threads    map[string]*models.Thread
	failAppend bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{threads: make(map[string]*models.Thread)}
}

func (s *fakeStore) GetByID(ctx context.Context, threadID string) (*models.Thread, error) {
	thread, ok := s.threads[threadID]
	if !ok {
		return nil, repository.ErrThreadNotFound
	}
	return thread, nil
}

func (s *fakeStore) AppendMessages(ctx context.Context, threadID, title string, msgs []models.Message) error {
	if s.failAppend {
		return errors.New("store unavailable")
	}
	thread, ok := s.threads[threadID]
	if !ok {
		thread = &models.Thread{ThreadID: threadID, Title: title}
		s.threads[threadID] = thread
	}
	thread.Messages = append(thread.Messages, msgs...)
	return nil
}

type fakeProvider struct {
	requests []CompletionRequest
	fn       func(req CompletionRequest) (*Completion, error)
}

func (p *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	p.requests = append(p.requests, req)
	return p.fn(req)
}

type fakeMemory struct {
	results   []memory.Result
	searchErr error
	addErr    error
	added     []string
}

func (m *fakeMemory) Search(ctx context.Context, query string, k int) ([]memory.Result, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if len(m.results) > k {
		return m.results[:k], nil
	}
	return m.results, nil
}

func (m *fakeMemory) Add(ctx context.Context, text string, metadata map[string]string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, text)
	return nil
}

func echoProvider() *fakeProvider {
	return &fakeProvider{fn: func(req CompletionRequest) (*Completion, error) {
		return &Completion{Text: "echo: " + req.Message}, nil
	}}
}

// ─── Tests ───

func TestHandleTurn_AppendsUserAndAssistantPair(t *testing.T) {
	store := newFakeStore()
	svc := NewChatService(store, echoProvider(), &fakeMemory{}, 2, 10, 30)

	result, err := svc.HandleTurn(context.Background(), "t-1", "hello there")
	if err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}
	if result.Reply != "echo: hello there" {
		t.Errorf("Expected echoed reply, got %q", result.Reply)
	}

	thread := store.threads["t-1"]
	if thread == nil {
		t.Fatal("Expected thread to be created lazily")
	}
	if len(thread.Messages) != 2 {
		t.Fatalf("Expected exactly 2 messages, got %d", len(thread.Messages))
	}
	if thread.Messages[0].Role != models.RoleUser || thread.Messages[1].Role != models.RoleAssistant {
		t.Errorf("Expected roles [user, assistant], got [%s, %s]",
			thread.Messages[0].Role, thread.Messages[1].Role)
	}
	if thread.Title != "hello there" {
		t.Errorf("Expected title from first message, got %q", thread.Title)
	}
}

func TestHandleTurn_CalculatorScenario(t *testing.T) {
	// The provider requests the calculator tool and replies with its output,
	// mirroring a tool-calling turn for "Calculate 2+2".
	registry := NewToolRegistry(NewCalculatorTool())
	provider := &fakeProvider{fn: func(req CompletionRequest) (*Completion, error) {
		result := registry.Call(context.Background(), "calculator", `{"expression":"2+2"}`)
		return &Completion{
			Text:      result,
			ToolCalls: []models.ToolCallInfo{{Name: "calculator", Input: `{"expression":"2+2"}`}},
		}, nil
	}}

	store := newFakeStore()
	svc := NewChatService(store, provider, &fakeMemory{}, 2, 10, 30)

	result, err := svc.HandleTurn(context.Background(), "t-1", "Calculate 2+2")
	if err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}
	if !strings.Contains(result.Reply, "4") {
		t.Errorf("Expected reply to contain '4', got %q", result.Reply)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "calculator" {
		t.Errorf("Expected calculator tool call recorded, got %v", result.ToolCalls)
	}

	thread := store.threads["t-1"]
	if len(thread.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(thread.Messages))
	}
	meta := thread.Messages[1].Metadata
	if meta == nil || len(meta.ToolCalls) != 1 {
		t.Errorf("Expected tool call metadata on assistant message, got %+v", meta)
	}
}

func TestHandleTurn_ProviderFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{fn: func(req CompletionRequest) (*Completion, error) {
		return nil, errors.New("provider down")
	}}

	store := newFakeStore()
	svc := NewChatService(store, provider, &fakeMemory{}, 2, 10, 30)

	result, err := svc.HandleTurn(context.Background(), "t-1", "hello")
	if err != nil {
		t.Fatalf("Provider failure must not surface as an error, got: %v", err)
	}
	if result.Reply != fallbackReply {
		t.Errorf("Expected fallback reply, got %q", result.Reply)
	}

	// Two attempts: normal, then direct retry without tools.
	if len(provider.requests) != 2 {
		t.Fatalf("Expected 2 provider attempts, got %d", len(provider.requests))
	}
	if provider.requests[0].DisableTools {
		t.Error("First attempt should allow tools")
	}
	if !provider.requests[1].DisableTools {
		t.Error("Retry should disable tools")
	}

	// The turn is still handled: both messages persisted.
	if got := len(store.threads["t-1"].Messages); got != 2 {
		t.Errorf("Expected 2 messages after fallback, got %d", got)
	}
}

func TestHandleTurn_DirectRetrySucceeds(t *testing.T) {
	provider := &fakeProvider{fn: func(req CompletionRequest) (*Completion, error) {
		if !req.DisableTools {
			return nil, errors.New("tool loop timed out")
		}
		return &Completion{Text: "direct answer"}, nil
	}}

	store := newFakeStore()
	svc := NewChatService(store, provider, &fakeMemory{}, 2, 10, 30)

	result, err := svc.HandleTurn(context.Background(), "t-1", "hello")
	if err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}
	if result.Reply != "direct answer" {
		t.Errorf("Expected direct retry reply, got %q", result.Reply)
	}
}

func TestHandleTurn_MemoryFailuresNonFatal(t *testing.T) {
	mem := &fakeMemory{
		searchErr: errors.New("vector index unreachable"),
		addErr:    errors.New("vector index unreachable"),
	}

	store := newFakeStore()
	svc := NewChatService(store, echoProvider(), mem, 2, 10, 30)

	result, err := svc.HandleTurn(context.Background(), "t-1", "hello")
	if err != nil {
		t.Fatalf("Memory failure must not surface as an error, got: %v", err)
	}
	if result.Reply == "" {
		t.Error("Expected a reply despite memory failures")
	}
	if result.Context != "" {
		t.Errorf("Expected no context after search failure, got %q", result.Context)
	}
	if got := len(store.threads["t-1"].Messages); got != 2 {
		t.Errorf("Expected 2 messages, got %d", got)
	}
}

func TestHandleTurn_ContextInjected(t *testing.T) {
	mem := &fakeMemory{results: []memory.Result{
		{Text: "User: my name is Ada\nAssistant: Nice to meet you, Ada", Score: 0.9},
	}}

	provider := echoProvider()
	store := newFakeStore()
	svc := NewChatService(store, provider, mem, 2, 10, 30)

	result, err := svc.HandleTurn(context.Background(), "t-1", "what is my name?")
	if err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}
	if result.Context != "Retrieved relevant context" {
		t.Errorf("Expected context marker in result, got %q", result.Context)
	}
	if !strings.Contains(provider.requests[0].Context, "my name is Ada") {
		t.Errorf("Expected retrieved snippet in provider request, got %q", provider.requests[0].Context)
	}
	if meta := store.threads["t-1"].Messages[1].Metadata; meta == nil || !meta.ContextUsed {
		t.Error("Expected context_used metadata on assistant message")
	}
}

func TestHandleTurn_IndexesExchange(t *testing.T) {
	mem := &fakeMemory{}
	store := newFakeStore()
	svc := NewChatService(store, echoProvider(), mem, 2, 10, 30)

	if _, err := svc.HandleTurn(context.Background(), "t-1", "hello"); err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}

	if len(mem.added) != 1 {
		t.Fatalf("Expected 1 indexed exchange, got %d", len(mem.added))
	}
	if !strings.Contains(mem.added[0], "User: hello") {
		t.Errorf("Expected indexed text to contain the user message, got %q", mem.added[0])
	}
}

func TestHandleTurn_HistoryWindow(t *testing.T) {
	store := newFakeStore()
	thread := &models.Thread{ThreadID: "t-1"}
	for i := 0; i < 12; i++ {
		thread.Messages = append(thread.Messages, models.Message{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
	}
	store.threads["t-1"] = thread

	provider := echoProvider()
	svc := NewChatService(store, provider, &fakeMemory{}, 2, 10, 30)

	if _, err := svc.HandleTurn(context.Background(), "t-1", "latest"); err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}

	history := provider.requests[0].History
	if len(history) != 10 {
		t.Fatalf("Expected history window of 10, got %d", len(history))
	}
	if history[0].Content != "message 2" {
		t.Errorf("Expected window to keep the most recent messages, first was %q", history[0].Content)
	}
}

func TestHandleTurn_PersistenceFailureSurfaces(t *testing.T) {
	store := newFakeStore()
	store.failAppend = true

	svc := NewChatService(store, echoProvider(), &fakeMemory{}, 2, 10, 30)

	if _, err := svc.HandleTurn(context.Background(), "t-1", "hello"); err == nil {
		t.Fatal("Expected persistence failure to surface as an error")
	}
	if _, ok := store.threads["t-1"]; ok {
		t.Error("Expected thread to remain absent after failed append")
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"short message kept", "hello", "hello"},
		{"whitespace trimmed", "  hi  ", "hi"},
		{
			"long message truncated",
			strings.Repeat("a", 60),
			strings.Repeat("a", 50) + "…",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveTitle(tc.input); got != tc.expected {
				t.Errorf("deriveTitle(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
