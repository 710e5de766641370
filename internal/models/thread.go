package models

import "time"

// Message roles. A thread conceptually alternates user/assistant but the
// store accepts any append order.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageMetadata carries auxiliary info about how an assistant reply was
// produced. Informational only; never replayed into future prompts.
type MessageMetadata struct {
	ToolCalls   []ToolCallInfo `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	ContextUsed bool           `json:"context_used,omitempty" bson:"context_used,omitempty"`
}

// ToolCallInfo records a single tool invocation made during a turn.
type ToolCallInfo struct {
	Name  string `json:"name" bson:"name"`
	Input string `json:"input" bson:"input"`
}

// Message is a single entry in a thread's append-only message log.
type Message struct {
	Role      string           `json:"role" bson:"role"` // "user" or "assistant"
	Content   string           `json:"content" bson:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
}

// Thread is a persisted conversation. Messages are embedded in the thread
// document so a delete removes the thread and its messages atomically.
type Thread struct {
	ThreadID  string    `json:"threadId" bson:"thread_id"`
	Title     string    `json:"title" bson:"title"`
	Messages  []Message `json:"messages" bson:"messages"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// ThreadSummary is the listing projection (no messages).
type ThreadSummary struct {
	ThreadID  string    `json:"threadId" bson:"thread_id"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}
