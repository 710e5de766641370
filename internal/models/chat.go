package models

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

// ChatResponse is the reply from a chat turn.
type ChatResponse struct {
	Reply     string         `json:"reply"`
	ToolCalls []ToolCallInfo `json:"toolCalls,omitempty"`
	Context   string         `json:"context,omitempty"`
}

// DeleteResponse confirms a thread deletion.
type DeleteResponse struct {
	Message string `json:"message"`
}

// WSMessage is a websocket turn-lifecycle event.
type WSMessage struct {
	Type    string      `json:"type"` // "tool_start" | "tool_end" | "reply" | "error"
	Payload interface{} `json:"payload"`
}
