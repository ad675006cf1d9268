package service

import (
	"context"

	"examcraft/internal/domain"
	"examcraft/internal/util"
)

// PaperService handles paper creation and reads. Generation itself runs on
// the worker; creation only records the request and enqueues it.
type PaperService struct {
	paperRepo  domain.PaperRepository
	sourceRepo domain.SourceRepository
	queue      domain.JobQueue
}

func NewPaperService(
	paperRepo domain.PaperRepository,
	sourceRepo domain.SourceRepository,
	queue domain.JobQueue,
) *PaperService {
	return &PaperService{paperRepo: paperRepo, sourceRepo: sourceRepo, queue: queue}
}

// CreatePaper records a DRAFT paper against a READY source and enqueues
// generate_paper. A source still chunking (or failed) is rejected here so
// the caller gets a synchronous conflict instead of a doomed job.
func (s *PaperService) CreatePaper(ctx context.Context, sourceID, title string, config *domain.PaperConfig) (*domain.Paper, error) {
	source, err := s.sourceRepo.GetSourceByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, domain.NewSourceNotFoundError(sourceID)
	}
	if source.Status != domain.SourceReady {
		return nil, domain.NewConflictError(
			"Source is not READY yet. Current status: " + string(source.Status))
	}

	cfg := domain.DefaultPaperConfig()
	if config != nil {
		cfg = *config
	}
	if title == "" {
		title = "Exam: " + source.Title
	}

	paper := &domain.Paper{
		ID:       util.NewULID(),
		SourceID: sourceID,
		Title:    title,
		Config:   cfg,
		Status:   domain.PaperDraft,
	}
	if err := s.paperRepo.SavePaper(ctx, paper); err != nil {
		return nil, err
	}

	err = s.queue.Enqueue(ctx, domain.JobGeneratePaper, domain.GeneratePaperPayload{PaperID: paper.ID})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (s *PaperService) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	paper, err := s.paperRepo.GetPaperByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, domain.NewPaperNotFoundError(id)
	}
	return paper, nil
}

// GetPaperQuestions returns the paper's questions with citations attached.
// Callers decide whether the answer keys may leave the process.
func (s *PaperService) GetPaperQuestions(ctx context.Context, paperID string) ([]*domain.Question, map[string][]*domain.QuestionCitation, error) {
	questions, err := s.paperRepo.GetQuestionsByPaper(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	citations := make(map[string][]*domain.QuestionCitation, len(questions))
	for _, q := range questions {
		c, err := s.paperRepo.GetCitationsByQuestion(ctx, q.ID)
		if err != nil {
			return nil, nil, err
		}
		citations[q.ID] = c
	}
	return questions, citations, nil
}

func (s *PaperService) ListPapersBySource(ctx context.Context, sourceID string) ([]*domain.Paper, error) {
	source, err := s.sourceRepo.GetSourceByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, domain.NewSourceNotFoundError(sourceID)
	}
	return s.paperRepo.ListPapersBySource(ctx, sourceID)
}

func (s *PaperService) DeletePaper(ctx context.Context, id string) error {
	return s.paperRepo.DeletePaper(ctx, id)
}

// GetPaperSnapshot is the cheap status read used to seed event streams.
func (s *PaperService) GetPaperSnapshot(ctx context.Context, id string) (*domain.Paper, error) {
	return s.GetPaper(ctx, id)
}
