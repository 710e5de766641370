package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// MongoDB
	MongoURL      string
	MongoDatabase string

	// Provider selection: "openai" (Together/OpenAI-compatible) or "gemini"
	Provider string

	// OpenAI-compatible provider
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	EmbedModel    string

	// Gemini provider
	GeminiAPIKey string
	GeminiModel  string

	// Memory augmentation: "none" | "memory" | "redis" | "pgvector"
	MemoryBackend string
	RedisURL      string
	DatabaseURL   string
	MemoryTopK    int

	// Chat orchestration
	HistoryWindow   int
	ProviderTimeout int // seconds

	// Tools
	SerpAPIKey string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		Env:           getEnvOrDefault("ENV", "development"),
		MongoURL:      mustGetEnv("MONGODB_URL"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "sigmagpt"),
		Provider:      getEnvOrDefault("PROVIDER", "openai"),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", "https://api.together.xyz/v1"),
		ChatModel:     getEnvOrDefault("OPENAI_CHAT_MODEL", "deepseek-ai/DeepSeek-V3"),
		EmbedModel:    getEnvOrDefault("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		GeminiModel:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		MemoryBackend: getEnvOrDefault("MEMORY_BACKEND", "none"),
		RedisURL:      getEnvOrDefault("REDIS_URL", ""),
		DatabaseURL:   getEnvOrDefault("DATABASE_URL", ""),
		MemoryTopK:    getEnvAsIntOrDefault("MEMORY_TOP_K", 2),

		HistoryWindow:   getEnvAsIntOrDefault("HISTORY_WINDOW", 10),
		ProviderTimeout: getEnvAsIntOrDefault("PROVIDER_TIMEOUT_SECONDS", 30),

		SerpAPIKey:  getEnvOrDefault("SERPAPI_API_KEY", ""),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// Credentials are only required for the selected provider/backend.
	switch cfg.Provider {
	case "gemini":
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	default:
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
	}

	// Embeddings go through the OpenAI-compatible endpoint regardless of
	// which provider serves chat, so any memory backend needs the key.
	if cfg.MemoryBackend != "none" && cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
	}

	switch cfg.MemoryBackend {
	case "redis":
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	case "pgvector":
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
