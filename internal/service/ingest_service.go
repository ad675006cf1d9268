// Package service holds the application services: the read/write surfaces
// behind the HTTP handlers and the job handlers behind the worker. Pipeline
// writers publish status events only after their transaction commits.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"examcraft/internal/chunker"
	"examcraft/internal/config"
	"examcraft/internal/domain"
	"examcraft/internal/logger"
	"examcraft/internal/util"
)

// IngestService turns a source's documents into chunks and, best-effort,
// embeddings. It backs the chunk_and_embed job.
type IngestService struct {
	sourceRepo domain.SourceRepository
	txManager  domain.TransactionManager
	embedder   domain.EmbeddingService // nil when embeddings are not configured
	publisher  domain.EventPublisher
	cfg        *config.Config
}

func NewIngestService(
	sourceRepo domain.SourceRepository,
	txManager domain.TransactionManager,
	embedder domain.EmbeddingService,
	publisher domain.EventPublisher,
	cfg *config.Config,
) *IngestService {
	return &IngestService{
		sourceRepo: sourceRepo,
		txManager:  txManager,
		embedder:   embedder,
		publisher:  publisher,
		cfg:        cfg,
	}
}

// ChunkAndEmbed re-chunks every document of the source inside one
// transaction, then embeds the chunks in batches outside of it. Embedding
// failure degrades the source, it never fails it; zero chunks do.
// Re-entrant: the delete-then-insert makes a repeat run converge.
func (s *IngestService) ChunkAndEmbed(ctx context.Context, sourceID string) error {
	log := logger.Get().With(zap.String("source_id", sourceID))

	docs, err := s.sourceRepo.GetDocumentsBySource(ctx, sourceID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return domain.NewError(domain.CodeEmptyContent, "No documents found for source: "+sourceID, nil)
	}

	var inserted []*domain.Chunk
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.sourceRepo.UpdateSourceStatus(txCtx, sourceID, domain.SourceProcessing, ""); err != nil {
			return err
		}
		if err := s.sourceRepo.DeleteChunksBySource(txCtx, sourceID); err != nil {
			return err
		}

		for _, doc := range docs {
			plans := chunker.ChunkText(doc.ContentText, s.cfg.Chunking.MaxChars)
			log.Info("document chunked",
				zap.String("document_id", doc.ID), zap.Int("chunks", len(plans)))

			chunks := make([]*domain.Chunk, 0, len(plans))
			for i, plan := range plans {
				chunks = append(chunks, &domain.Chunk{
					ID:         util.NewULID(),
					DocumentID: doc.ID,
					ChunkIndex: i,
					Text:       plan.Text,
					Meta:       plan.Meta,
					CreatedAt:  time.Now(),
				})
			}
			if err := s.sourceRepo.SaveChunks(txCtx, chunks); err != nil {
				return err
			}
			inserted = append(inserted, chunks...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(inserted) == 0 {
		const msg = "No chunks generated (empty input?)"
		if err := s.sourceRepo.UpdateSourceStatus(ctx, sourceID, domain.SourceFailed, msg); err != nil {
			return err
		}
		s.publisher.Publish(domain.TopicSource(sourceID), domain.StatusEvent{
			Type: "source", ID: sourceID, Status: string(domain.SourceFailed), Error: msg,
		})
		return nil
	}

	s.embedChunks(ctx, inserted, log)

	if err := s.sourceRepo.UpdateSourceStatus(ctx, sourceID, domain.SourceReady, ""); err != nil {
		return err
	}
	s.publisher.Publish(domain.TopicSource(sourceID), domain.StatusEvent{
		Type: "source", ID: sourceID, Status: string(domain.SourceReady),
	})
	return nil
}

// embedChunks upserts embeddings per batch so partial progress survives a
// provider failure. Any error just stops the remainder.
func (s *IngestService) embedChunks(ctx context.Context, chunks []*domain.Chunk, log *zap.Logger) {
	if s.embedder == nil {
		log.Info("no embedding backend configured, skipping embeddings")
		return
	}

	batchSize := s.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	model := s.embedder.ModelName()

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.GenerateBatch(ctx, texts)
		if err != nil {
			log.Warn("embedding failed, continuing without embeddings",
				zap.Int("embedded", start), zap.Error(err))
			return
		}

		embeddings := make([]*domain.ChunkEmbedding, len(batch))
		for i := range batch {
			embeddings[i] = &domain.ChunkEmbedding{
				ChunkID:   batch[i].ID,
				Vector:    vectors[i],
				Model:     model,
				CreatedAt: time.Now(),
			}
		}
		if err := s.sourceRepo.UpsertEmbeddings(ctx, embeddings); err != nil {
			log.Warn("failed to store embeddings", zap.Error(err))
			return
		}
	}
	log.Info("chunks embedded", zap.Int("count", len(chunks)), zap.String("model", model))
}
