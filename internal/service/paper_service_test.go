package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examcraft/internal/domain"
)

func TestPaperService_CreatePaper(t *testing.T) {
	t.Run("records a DRAFT paper and enqueues generation", func(t *testing.T) {
		paperRepo := new(MockPaperRepository)
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewPaperService(paperRepo, sourceRepo, queue)

		sourceRepo.On("GetSourceByID", mock.Anything, "src1").
			Return(&domain.Source{ID: "src1", Title: "Go Notes", Status: domain.SourceReady}, nil)
		var saved *domain.Paper
		paperRepo.On("SavePaper", mock.Anything, mock.AnythingOfType("*domain.Paper")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Paper) }).
			Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobGeneratePaper, mock.Anything).
			Return(nil)

		paper, err := svc.CreatePaper(context.Background(), "src1", "", nil)

		require.NoError(t, err)
		assert.Equal(t, domain.PaperDraft, paper.Status)
		assert.Equal(t, "Exam: Go Notes", paper.Title)
		assert.Equal(t, domain.DefaultPaperConfig(), saved.Config)
		queue.AssertExpectations(t)
	})

	t.Run("missing source is not found", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		svc := NewPaperService(new(MockPaperRepository), sourceRepo, new(MockJobQueue))

		sourceRepo.On("GetSourceByID", mock.Anything, "missing").Return(nil, nil)

		_, err := svc.CreatePaper(context.Background(), "missing", "", nil)

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.CodeSourceNotFound, domainErr.Code)
	})

	t.Run("source still chunking is a conflict, nothing enqueued", func(t *testing.T) {
		paperRepo := new(MockPaperRepository)
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewPaperService(paperRepo, sourceRepo, queue)

		sourceRepo.On("GetSourceByID", mock.Anything, "src1").
			Return(&domain.Source{ID: "src1", Title: "Go Notes", Status: domain.SourceProcessing}, nil)

		_, err := svc.CreatePaper(context.Background(), "src1", "", nil)

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.CodeConflict, domainErr.Code)
		paperRepo.AssertNotCalled(t, "SavePaper", mock.Anything, mock.Anything)
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("explicit config wins over the default", func(t *testing.T) {
		paperRepo := new(MockPaperRepository)
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewPaperService(paperRepo, sourceRepo, queue)

		sourceRepo.On("GetSourceByID", mock.Anything, "src1").
			Return(&domain.Source{ID: "src1", Title: "Go Notes", Status: domain.SourceReady}, nil)
		var saved *domain.Paper
		paperRepo.On("SavePaper", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Paper) }).
			Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobGeneratePaper, mock.Anything).Return(nil)

		cfg := domain.PaperConfig{Language: "ko", NumQuestions: 5, Difficulty: 3, Mix: domain.PaperMix{MCQ: 100}}
		_, err := svc.CreatePaper(context.Background(), "src1", "Custom", &cfg)

		require.NoError(t, err)
		assert.Equal(t, cfg, saved.Config)
		assert.Equal(t, "Custom", saved.Title)
	})
}
