package embedding

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"examcraft/internal/cache"
	"examcraft/internal/domain"
	"examcraft/internal/logger"
)

// CachedEmbeddingService decorates another EmbeddingService with a
// gob-encoded Redis cache keyed by text hash. Concurrent misses for the same
// text are collapsed into one provider call through singleflight.
type CachedEmbeddingService struct {
	inner   domain.EmbeddingService
	cache   domain.Cache
	ttl     time.Duration
	sfGroup singleflight.Group
}

func NewCachedEmbeddingService(inner domain.EmbeddingService, cacheStore domain.Cache, ttl time.Duration) *CachedEmbeddingService {
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &CachedEmbeddingService{inner: inner, cache: cacheStore, ttl: ttl}
}

func (s *CachedEmbeddingService) cacheKey(text string) string {
	return cache.GenerateCacheKey("embedding", s.inner.ModelName(), hashString(text))
}

func (s *CachedEmbeddingService) lookup(ctx context.Context, key string) ([]float32, bool) {
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		if err != domain.ErrCacheMiss {
			logger.Get().Warn("embedding cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var vector []float32
	if decodeErr := gob.NewDecoder(bytes.NewReader([]byte(cached))).Decode(&vector); decodeErr != nil {
		logger.Get().Warn("discarding undecodable cached embedding", zap.String("key", key))
		return nil, false
	}
	return vector, true
}

func (s *CachedEmbeddingService) store(ctx context.Context, key string, vector []float32) {
	var buffer bytes.Buffer
	if encodeErr := gob.NewEncoder(&buffer).Encode(vector); encodeErr != nil {
		return
	}
	if setErr := s.cache.Set(ctx, key, buffer.String(), s.ttl); setErr != nil {
		logger.Get().Warn("failed to cache embedding", zap.Error(setErr))
	}
}

func (s *CachedEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	key := s.cacheKey(text)

	if vector, ok := s.lookup(ctx, key); ok {
		return vector, nil
	}

	res, err, _ := s.sfGroup.Do(key, func() (interface{}, error) {
		vector, fetchErr := s.inner.Generate(ctx, text)
		if fetchErr != nil {
			return nil, fetchErr
		}
		s.store(ctx, key, vector)
		return vector, nil
	})
	if err != nil {
		return nil, err
	}

	vector, ok := res.([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight for embedding: %T", res)
	}
	return vector, nil
}

// GenerateBatch serves cached vectors and embeds only the misses in one
// provider call. Re-chunking an unchanged document produces the same chunk
// texts, so its whole batch resolves from the cache.
func (s *CachedEmbeddingService) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vector, ok := s.lookup(ctx, s.cacheKey(text)); ok {
			vectors[i] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	fetched, err := s.inner.GenerateBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missTexts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(fetched), len(missTexts))
	}
	for j, vector := range fetched {
		vectors[missIdx[j]] = vector
		s.store(ctx, s.cacheKey(missTexts[j]), vector)
	}
	return vectors, nil
}

func (s *CachedEmbeddingService) ModelName() string { return s.inner.ModelName() }
