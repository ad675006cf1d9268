package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"examcraft/internal/domain"
	"examcraft/internal/github"
	"examcraft/internal/logger"
	"examcraft/internal/util"
)

// RepoFetcher is the slice of the GitHub client the fetch job needs.
type RepoFetcher interface {
	FetchRepoTree(ctx context.Context, owner, repo, ref string) (string, []github.TreeEntry, error)
	FetchFileContent(ctx context.Context, owner, repo, ref, path string) (string, error)
}

// FetchService imports a public repository's files as documents of a source,
// then hands off to the chunking pipeline. Backs the fetch_source job.
type FetchService struct {
	sourceRepo domain.SourceRepository
	txManager  domain.TransactionManager
	fetcher    RepoFetcher
	queue      domain.JobQueue
	publisher  domain.EventPublisher
}

func NewFetchService(
	sourceRepo domain.SourceRepository,
	txManager domain.TransactionManager,
	fetcher RepoFetcher,
	queue domain.JobQueue,
	publisher domain.EventPublisher,
) *FetchService {
	return &FetchService{
		sourceRepo: sourceRepo,
		txManager:  txManager,
		fetcher:    fetcher,
		queue:      queue,
		publisher:  publisher,
	}
}

// FetchGithubSource pulls the repo tree, filters it, stores each fetched
// file as a document and enqueues chunk_and_embed. Any failure marks the
// source FAILED; individual file fetch failures are skipped, not fatal.
func (s *FetchService) FetchGithubSource(ctx context.Context, payload domain.FetchSourcePayload) error {
	if err := s.fetchGithubSource(ctx, payload); err != nil {
		msg := err.Error()
		if updateErr := s.sourceRepo.UpdateSourceStatus(ctx, payload.SourceID, domain.SourceFailed, msg); updateErr != nil {
			logger.Get().Error("failed to mark source failed",
				zap.String("source_id", payload.SourceID), zap.Error(updateErr))
		}
		s.publisher.Publish(domain.TopicSource(payload.SourceID), domain.StatusEvent{
			Type: "source", ID: payload.SourceID, Status: string(domain.SourceFailed), Error: msg,
		})
		return err
	}
	return nil
}

func (s *FetchService) fetchGithubSource(ctx context.Context, payload domain.FetchSourcePayload) error {
	log := logger.Get().With(
		zap.String("source_id", payload.SourceID),
		zap.String("repo", payload.Owner+"/"+payload.Repo))

	ref, blobs, err := s.fetcher.FetchRepoTree(ctx, payload.Owner, payload.Repo, payload.Ref)
	if err != nil {
		return err
	}
	log.Info("repository tree fetched", zap.Int("blobs", len(blobs)), zap.String("ref", ref))

	files := github.FilterFiles(blobs, payload.Subpath)
	if len(files) == 0 {
		return domain.NewError(domain.CodeEmptyContent,
			"No supported files found in the repository (or subpath).", nil)
	}
	log.Info("repository files filtered", zap.Int("files", len(files)))

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Redelivered jobs re-import from scratch; stale documents from a
		// partial earlier run must not survive alongside the new set.
		if err := s.sourceRepo.DeleteDocumentsBySource(txCtx, payload.SourceID); err != nil {
			return err
		}
		for i, file := range files {
			content, err := s.fetcher.FetchFileContent(ctx, payload.Owner, payload.Repo, ref, file.Path)
			if err != nil {
				// One unreadable file must not abort the whole import.
				log.Warn("skipping file", zap.String("path", file.Path), zap.Error(err))
				continue
			}
			if strings.TrimSpace(content) == "" {
				continue
			}

			doc := &domain.Document{
				ID:          util.NewULID(),
				SourceID:    payload.SourceID,
				DocType:     domain.DocGithubFile,
				URI:         github.BuildFileURL(payload.Owner, payload.Repo, ref, file.Path),
				ContentHash: util.HashSHA256(content),
				ContentText: content,
				Meta: domain.DocumentMeta{
					Path:     file.Path,
					Repo:     payload.Owner + "/" + payload.Repo,
					Ref:      ref,
					Language: github.DetectLanguage(file.Path),
				},
				CreatedAt: time.Now(),
			}
			if github.IsDocFile(file.Path) {
				doc.ContentMd = content
			}
			if err := s.sourceRepo.SaveDocument(txCtx, doc); err != nil {
				return err
			}
			log.Debug("file imported", zap.Int("index", i+1), zap.String("path", file.Path))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.queue.Enqueue(ctx, domain.JobChunkAndEmbed, domain.ChunkAndEmbedPayload{
		SourceID: payload.SourceID,
	})
}
