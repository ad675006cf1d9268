package service

import (
	"context"
	"time"

	"examcraft/internal/domain"
	"examcraft/internal/github"
	"examcraft/internal/util"
)

// SourceDetail is a source plus its content counts.
type SourceDetail struct {
	Source    *domain.Source
	Documents int
	Chunks    int
}

// DocumentPreview is the capped read-only view of an ingested document.
type DocumentPreview struct {
	ID      string
	DocType domain.DocType
	URI     string
	Meta    domain.DocumentMeta
	Preview string
	Bytes   int
}

const previewChars = 800

// SourceService handles source creation and reads. Creation always returns
// a PROCESSING source; everything afterwards happens on the queue.
type SourceService struct {
	sourceRepo domain.SourceRepository
	txManager  domain.TransactionManager
	queue      domain.JobQueue
}

func NewSourceService(
	sourceRepo domain.SourceRepository,
	txManager domain.TransactionManager,
	queue domain.JobQueue,
) *SourceService {
	return &SourceService{sourceRepo: sourceRepo, txManager: txManager, queue: queue}
}

func defaultTitle(sourceType domain.SourceType) string {
	return string(sourceType) + " " + time.Now().Format("2006-01-02 15:04:05")
}

// CreateTextSource imports pasted text or an uploaded markdown file: one
// source, one ARTICLE document, then chunk_and_embed on the queue. The job
// is enqueued only after the transaction commits.
func (s *SourceService) CreateTextSource(ctx context.Context, sourceType domain.SourceType, title, content string) (*domain.Source, error) {
	if sourceType != domain.SourcePaste && sourceType != domain.SourceMarkdownUpload {
		return nil, domain.NewInvalidInputError("unsupported source type: " + string(sourceType))
	}
	if title == "" {
		title = defaultTitle(sourceType)
	}

	source := domain.NewSource(sourceType, title)
	source.ID = util.NewULID()

	doc := &domain.Document{
		ID:          util.NewULID(),
		SourceID:    source.ID,
		DocType:     domain.DocArticle,
		ContentHash: util.HashSHA256(content),
		ContentText: content,
		Meta:        domain.DocumentMeta{SourceType: string(sourceType)},
		CreatedAt:   time.Now(),
	}
	if sourceType == domain.SourceMarkdownUpload {
		doc.ContentMd = content
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.sourceRepo.SaveSource(txCtx, source); err != nil {
			return err
		}
		return s.sourceRepo.SaveDocument(txCtx, doc)
	})
	if err != nil {
		return nil, err
	}

	err = s.queue.Enqueue(ctx, domain.JobChunkAndEmbed, domain.ChunkAndEmbedPayload{SourceID: source.ID})
	if err != nil {
		return nil, err
	}
	return source, nil
}

// CreateGithubSource parses the repository URL, creates the source and
// enqueues fetch_source. The import itself runs on the worker.
func (s *SourceService) CreateGithubSource(ctx context.Context, title, repoURL string) (*domain.Source, error) {
	parsed, err := github.ParseURL(repoURL)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = parsed.Owner + "/" + parsed.Repo
	}
	source := domain.NewSource(domain.SourceGithub, title)
	source.ID = util.NewULID()

	if err := s.sourceRepo.SaveSource(ctx, source); err != nil {
		return nil, err
	}

	err = s.queue.Enqueue(ctx, domain.JobFetchSource, domain.FetchSourcePayload{
		SourceID: source.ID,
		Owner:    parsed.Owner,
		Repo:     parsed.Repo,
		Ref:      parsed.Ref,
		Subpath:  parsed.Subpath,
	})
	if err != nil {
		return nil, err
	}
	return source, nil
}

// CreateURLSource is reserved: generic web pages are not ingestible yet.
func (s *SourceService) CreateURLSource(context.Context, string, string) (*domain.Source, error) {
	return nil, domain.NewError(domain.CodeNotImplemented, "URL source type is not yet supported.", nil)
}

func (s *SourceService) ListSources(ctx context.Context, limit int) ([]*domain.Source, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.sourceRepo.ListSources(ctx, domain.DefaultUserID, limit)
}

func (s *SourceService) GetSource(ctx context.Context, id string) (*SourceDetail, error) {
	source, err := s.sourceRepo.GetSourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, domain.NewSourceNotFoundError(id)
	}
	docs, chunks, err := s.sourceRepo.CountsBySource(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SourceDetail{Source: source, Documents: docs, Chunks: chunks}, nil
}

// PreviewSource returns the first characters of every document, never the
// full text.
func (s *SourceService) PreviewSource(ctx context.Context, id string) ([]*DocumentPreview, error) {
	source, err := s.sourceRepo.GetSourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, domain.NewSourceNotFoundError(id)
	}

	docs, err := s.sourceRepo.GetDocumentsBySource(ctx, id)
	if err != nil {
		return nil, err
	}
	previews := make([]*DocumentPreview, 0, len(docs))
	for _, doc := range docs {
		preview := doc.ContentText
		if len([]rune(preview)) > previewChars {
			preview = string([]rune(preview)[:previewChars])
		}
		previews = append(previews, &DocumentPreview{
			ID:      doc.ID,
			DocType: doc.DocType,
			URI:     doc.URI,
			Meta:    doc.Meta,
			Preview: preview,
			Bytes:   len(doc.ContentText),
		})
	}
	return previews, nil
}

// DeleteSource cascades to documents, chunks, papers and their questions.
func (s *SourceService) DeleteSource(ctx context.Context, id string) error {
	return s.sourceRepo.DeleteSource(ctx, id)
}

// GetSourceSnapshot is the cheap status read used to seed event streams.
func (s *SourceService) GetSourceSnapshot(ctx context.Context, id string) (*domain.Source, error) {
	source, err := s.sourceRepo.GetSourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, domain.NewSourceNotFoundError(id)
	}
	return source, nil
}
