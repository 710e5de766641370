package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"sigma-backend/internal/memory"
	"sigma-backend/internal/models"
	"sigma-backend/internal/repository"
)

// fallbackReply is the canned apology used when the provider fails even
// after the direct-completion retry.
const fallbackReply = "I apologize, but I encountered an error while processing your request. " +
	"Please try rephrasing your question or ask something else."

// directRetryTimeout bounds the simplified no-tools retry after a provider
// failure or timeout.
const directRetryTimeout = 10 * time.Second

const maxTitleRunes = 50

type threadStore interface {
	GetByID(ctx context.Context, threadID string) (*models.Thread, error)
	AppendMessages(ctx context.Context, threadID, title string, msgs []models.Message) error
}

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Reply     string
	ToolCalls []models.ToolCallInfo
	Context   string
}

// ChatService orchestrates one chat turn: load history, retrieve memory
// context, generate a reply, persist the user/assistant pair, index the
// exchange.
type ChatService struct {
	store    threadStore
	provider Provider
	memory   memory.Index
	topK     int
	window   int
	timeout  time.Duration

	// Per-thread serialization: two concurrent turns on the same thread id
	// run one after the other, so each turn's pair lands contiguously.
	// Entries are never evicted; one mutex per thread id ever seen.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewChatService(store threadStore, provider Provider, mem memory.Index, topK, historyWindow, timeoutSeconds int) *ChatService {
	if mem == nil {
		mem = memory.NopIndex{}
	}
	if topK <= 0 {
		topK = 2
	}
	if historyWindow <= 0 {
		historyWindow = 10
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &ChatService{
		store:    store,
		provider: provider,
		memory:   mem,
		topK:     topK,
		window:   historyWindow,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		locks:    make(map[string]*sync.Mutex),
	}
}

// HandleTurn runs one chat turn. The only errors returned are persistence
// failures; provider and memory failures degrade internally. On success the
// thread has exactly two more messages than before.
func (s *ChatService) HandleTurn(ctx context.Context, threadID, message string) (*TurnResult, error) {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	// Load history; an unseen thread id just means empty history. The
	// thread itself is created lazily by the append below.
	var history []models.Message
	thread, err := s.store.GetByID(ctx, threadID)
	if err != nil && !errors.Is(err, repository.ErrThreadNotFound) {
		return nil, err
	}
	if thread != nil {
		history = thread.Messages
	}

	// Memory retrieval is best-effort: failures degrade to empty context.
	var contextText string
	snippets, err := s.memory.Search(ctx, message, s.topK)
	if err != nil {
		log.Printf("memory search failed (continuing without context): %v", err)
	} else {
		contextText = joinSnippets(snippets)
	}

	comp := s.generate(ctx, CompletionRequest{
		Context: contextText,
		History: lastN(history, s.window),
		Message: message,
	})

	now := time.Now().UTC()
	msgs := []models.Message{
		{Role: models.RoleUser, Content: message, CreatedAt: now},
		{
			Role:    models.RoleAssistant,
			Content: comp.Text,
			Metadata: &models.MessageMetadata{
				ToolCalls:   comp.ToolCalls,
				ContextUsed: contextText != "",
			},
			CreatedAt: now,
		},
	}

	// Single append call: user and assistant land together or not at all.
	if err := s.store.AppendMessages(ctx, threadID, deriveTitle(message), msgs); err != nil {
		return nil, err
	}

	// Best-effort indexing of the exchange for future retrieval.
	exchange := "User: " + message + "\nAssistant: " + comp.Text
	if err := s.memory.Add(ctx, exchange, map[string]string{"thread_id": threadID}); err != nil {
		log.Printf("memory indexing failed (ignored): %v", err)
	}

	result := &TurnResult{Reply: comp.Text, ToolCalls: comp.ToolCalls}
	if contextText != "" {
		result.Context = "Retrieved relevant context"
	}
	return result, nil
}

// generate calls the provider with the configured timeout. On failure it
// retries once as a direct completion without tools, then falls back to the
// canned apology. Deterministic: timeout -> direct retry -> fallback.
func (s *ChatService) generate(ctx context.Context, req CompletionRequest) *Completion {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	comp, err := s.provider.Complete(callCtx, req)
	if err == nil {
		return comp
	}
	log.Printf("provider call failed, retrying without tools: %v", err)

	retryCtx, cancelRetry := context.WithTimeout(ctx, directRetryTimeout)
	defer cancelRetry()

	req.DisableTools = true
	comp, err = s.provider.Complete(retryCtx, req)
	if err == nil {
		return comp
	}
	log.Printf("direct completion retry failed, using fallback reply: %v", err)

	return &Completion{Text: fallbackReply}
}

func (s *ChatService) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[threadID] = lock
	}
	return lock
}

func lastN(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func joinSnippets(snippets []memory.Result) string {
	var parts []string
	for _, s := range snippets {
		if strings.TrimSpace(s.Text) != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// deriveTitle uses the first user message as the thread title, truncated.
func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes]) + "…"
	}
	return title
}
