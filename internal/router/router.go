package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"sigma-backend/internal/handlers"
	"sigma-backend/internal/middleware"
	"sigma-backend/internal/websocket"
)

func New(
	threadHandler *handlers.ThreadHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Chat rate limiter (30 req/min per IP)
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {

		// ──── Thread Routes ────
		r.Route("/thread", func(r chi.Router) {
			r.Get("/", threadHandler.List)
			r.Get("/{threadId}", threadHandler.Get)
			r.Delete("/{threadId}", threadHandler.Delete)
		})

		// ──── Chat Route ────
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Chat)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
