package domain

import (
	"context"
	"time"
)

// ChatModel is the opaque completion provider: system + user prompt in,
// raw JSON out. Implementations must enforce a call timeout.
type ChatModel interface {
	// ChatJSON requests a single JSON-object response.
	ChatJSON(ctx context.Context, system, user string, temperature float32) ([]byte, error)

	// Available reports whether the provider credential is configured.
	// Callers use this to fail fast rather than issue doomed requests.
	Available() bool
}

// EmbeddingService generates text embeddings.
type EmbeddingService interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch embeds texts in one provider call, preserving order.
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the embedding model for persistence.
	ModelName() string
}

// Cache is the port for the key/value cache used by the embedding adapters.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheError represents an error originating from the cache.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss is returned when a key is not found in the cache.
const ErrCacheMiss = CacheError("cache: key not found")
