package websocket

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"sigma-backend/internal/models"
	"sigma-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type chatService interface {
	HandleTurn(ctx context.Context, threadID, message string) (*services.TurnResult, error)
}

// Hub serves chat turns over websocket connections, streaming tool
// lifecycle events as the turn runs. Each message on a connection is one
// turn, persisted exactly like POST /api/chat.
type Hub struct {
	chatService chatService
}

func NewHub(chatService chatService) *Hub {
	return &Hub{chatService: chatService}
}

type toolEvent struct {
	Tool    string `json:"tool"`
	Payload string `json:"payload"`
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg models.WSMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("WebSocket write failed: %v", err)
		}
	}

	for {
		var req models.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read failed: %v", err)
			}
			return
		}

		if strings.TrimSpace(req.ThreadID) == "" || strings.TrimSpace(req.Message) == "" {
			send(models.WSMessage{Type: "error", Payload: "Thread ID and message are required"})
			continue
		}

		ctx := services.WithToolObserver(r.Context(), func(event, tool, payload string) {
			send(models.WSMessage{Type: event, Payload: toolEvent{Tool: tool, Payload: payload}})
		})

		result, err := h.chatService.HandleTurn(ctx, req.ThreadID, req.Message)
		if err != nil {
			log.Printf("WebSocket chat turn failed for thread %s: %v", req.ThreadID, err)
			send(models.WSMessage{Type: "error", Payload: "Failed to process message"})
			continue
		}

		send(models.WSMessage{Type: "reply", Payload: models.ChatResponse{
			Reply:     result.Reply,
			ToolCalls: result.ToolCalls,
			Context:   result.Context,
		}})
	}
}
