// Package config reads process configuration from the environment and opens
// the database connection.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	UploadDir     string
	AllowedOrigin string
	WorkerCount   int

	GeminiAPIKey string
	GeminiModel  string

	EmbeddingProvider    string // "genai" or "ollama"
	GenAIEmbeddingModel  string
	OllamaBaseURL        string
	OllamaEmbeddingModel string
}

func Load() Config {
	return Config{
		Addr:          envOr("LISTEN_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		UploadDir:     envOr("UPLOAD_DIR", "uploads"),
		AllowedOrigin: envOr("ALLOWED_ORIGIN", "http://localhost:3000"),
		WorkerCount:   envIntOr("WORKER_COUNT", 2),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),

		EmbeddingProvider:    envOr("EMBEDDING_PROVIDER", "genai"),
		GenAIEmbeddingModel:  envOr("GENAI_EMBEDDING_MODEL", "gemini-embedding-001"),
		OllamaBaseURL:        envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaEmbeddingModel: os.Getenv("OLLAMA_EMBEDDING_MODEL"),
	}
}

func InitDB(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
