// Package embedding provides the embedding adapters behind
// domain.EmbeddingService: an OpenAI and an Ollama backend, both built on
// langchaingo embedders, plus a Redis-backed caching decorator.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	openaiLLM "github.com/tmc/langchaingo/llms/openai"

	"examcraft/internal/config"
	"examcraft/internal/domain"
)

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// OpenAIEmbeddingService implements domain.EmbeddingService against OpenAI.
type OpenAIEmbeddingService struct {
	embedder  embeddings.Embedder
	modelName string
}

func NewOpenAIEmbeddingService(apiKey, modelName string) (*OpenAIEmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}

	llm, err := openaiLLM.New(
		openaiLLM.WithToken(apiKey),
		openaiLLM.WithEmbeddingModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client for embedder: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder from OpenAI LLM: %w", err)
	}

	return &OpenAIEmbeddingService{embedder: embedder, modelName: modelName}, nil
}

func (s *OpenAIEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty for embedding")
	}
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding using OpenAI: %w", err)
	}
	return vector, nil
}

func (s *OpenAIEmbeddingService) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings using OpenAI: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (s *OpenAIEmbeddingService) ModelName() string { return s.modelName }

// NewEmbeddingService builds the configured backend and wraps it with the
// cache decorator. Returns nil (not an error) when the configured backend
// cannot be constructed for lack of credentials: embeddings are optional.
func NewEmbeddingService(cfg *config.Config, cache domain.Cache) (domain.EmbeddingService, error) {
	var (
		base domain.EmbeddingService
		err  error
	)
	switch cfg.Embedding.Source {
	case "ollama":
		base, err = NewOllamaEmbeddingService(cfg.Embedding.OllamaURL, cfg.Embedding.Model)
	default:
		if cfg.LLM.OpenAIAPIKey == "" {
			return nil, nil
		}
		base, err = NewOpenAIEmbeddingService(cfg.LLM.OpenAIAPIKey, cfg.Embedding.Model)
	}
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return base, nil
	}
	return NewCachedEmbeddingService(base, cache, cfg.Embedding.CacheTTL), nil
}
