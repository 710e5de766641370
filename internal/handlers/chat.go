package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"sigma-backend/internal/models"
	"sigma-backend/internal/services"
)

type chatService interface {
	HandleTurn(ctx context.Context, threadID, message string) (*services.TurnResult, error)
}

type ChatHandler struct {
	chatService chatService
}

func NewChatHandler(chatService chatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat runs one chat turn: appends the user message and the assistant reply
// to the thread (creating it lazily) and returns the reply.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.ThreadID) == "" || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Thread ID and message are required", r))
		return
	}

	result, err := h.chatService.HandleTurn(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		log.Printf("Error handling chat turn for thread %s: %v", req.ThreadID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to process message", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:     result.Reply,
		ToolCalls: result.ToolCalls,
		Context:   result.Context,
	})
}
