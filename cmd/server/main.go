package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigma-backend/internal/config"
	"sigma-backend/internal/database"
	"sigma-backend/internal/handlers"
	"sigma-backend/internal/memory"
	"sigma-backend/internal/repository"
	"sigma-backend/internal/router"
	"sigma-backend/internal/services"
	"sigma-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting SigmaGPT Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize MongoDB ────
	mongoClient, err := database.NewMongoClient(cfg.MongoURL)
	if err != nil {
		log.Fatalf("✗ MongoDB connection failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	log.Println("✓ MongoDB connected")

	threadRepo := repository.NewThreadRepo(mongoClient.Database(cfg.MongoDatabase))

	// ──── Step 3: Initialize OpenAI-compatible Client ────
	// Needed for embeddings even when Gemini serves the chat completions.
	openaiClient := services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	embedder := memory.NewOpenAIEmbedder(openaiClient, cfg.EmbedModel)

	// ──── Step 4: Initialize Memory Backend ────
	var memIndex memory.Index
	switch cfg.MemoryBackend {
	case "memory":
		memIndex = memory.NewInProcessIndex(embedder)
		log.Println("✓ Memory backend: in-process")
	case "redis":
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		memIndex = memory.NewRedisIndex(redisClient, embedder)
		log.Println("✓ Memory backend: redis")
	case "pgvector":
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		if err := database.EnsureMemorySchema(pool, memory.EmbeddingDimension); err != nil {
			log.Fatalf("✗ Memory schema setup failed: %v", err)
		}
		memIndex = memory.NewPgvectorIndex(pool, embedder)
		log.Println("✓ Memory backend: pgvector")
	default:
		memIndex = memory.NopIndex{}
		log.Println("✓ Memory backend: disabled")
	}

	// ──── Step 5: Initialize Provider ────
	tools := services.NewToolRegistry(
		services.NewCalculatorTool(),
		services.NewSearchTool(cfg.SerpAPIKey),
	)

	var provider services.Provider
	switch cfg.Provider {
	case "gemini":
		geminiProvider, err := services.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer geminiProvider.Close()
		provider = geminiProvider
		log.Printf("✓ Provider: gemini (%s)", cfg.GeminiModel)
	default:
		provider = services.NewOpenAIProvider(openaiClient, cfg.ChatModel, tools)
		log.Printf("✓ Provider: openai-compatible (%s)", cfg.ChatModel)
	}

	// ──── Step 6: Initialize Services & Handlers ────
	chatService := services.NewChatService(
		threadRepo,
		provider,
		memIndex,
		cfg.MemoryTopK,
		cfg.HistoryWindow,
		cfg.ProviderTimeout,
	)

	threadHandler := handlers.NewThreadHandler(threadRepo)
	chatHandler := handlers.NewChatHandler(chatService)
	wsHub := websocket.NewHub(chatService)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(threadHandler, chatHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ SigmaGPT Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
