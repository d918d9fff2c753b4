// Package knowledge builds and queries the per-job retrieval index over a
// free-text rule corpus. The index is rebuilt fresh for every job run and is
// never shared across jobs.
package knowledge

import (
	"context"
	"fmt"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig selects and configures an embedding backend.
type EmbedderConfig struct {
	Provider string // "genai" or "ollama"

	GenAIAPIKey string
	GenAIModel  string // default "gemini-embedding-001"

	OllamaEndpoint string // default "http://localhost:11434"
	OllamaModel    string
}

// NewEmbedder creates an embedding backend from configuration.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "genai":
		return NewGenAIEmbedder(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaEndpoint, cfg.OllamaModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'genai' or 'ollama')", cfg.Provider)
	}
}
