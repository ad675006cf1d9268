package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examcraft/internal/config"
	"examcraft/internal/domain"
)

func gradingConfig() *config.Config {
	return &config.Config{
		Grading: config.GradingConfig{EvidenceTextCap: 1200},
	}
}

func newGradingService(
	attemptRepo *MockAttemptRepository,
	paperRepo *MockPaperRepository,
	sourceRepo *MockSourceRepository,
	chat *MockChatModel,
	publisher *MockEventPublisher,
) *GradingService {
	return NewGradingService(attemptRepo, paperRepo, sourceRepo, fakeTxManager{}, chat, publisher, gradingConfig())
}

func submittedAttempt(id string) *domain.Attempt {
	return &domain.Attempt{
		ID:      id,
		PaperID: "p1",
		UserID:  domain.DefaultUserID,
		Status:  domain.AttemptSubmitted,
	}
}

func mcqQuestion(id, correct string, tags ...string) *domain.Question {
	return &domain.Question{
		ID:        id,
		PaperID:   "p1",
		Type:      domain.QuestionMCQ,
		Prompt:    "?",
		AnswerKey: domain.AnswerKey{CorrectOptionID: correct, Rationale: "because"},
		Tags:      tags,
	}
}

func TestGradingService_GradeAttempt(t *testing.T) {
	t.Run("two MCQs, one wrong: grades both, one wrong item", func(t *testing.T) {
		attemptRepo := new(MockAttemptRepository)
		paperRepo := new(MockPaperRepository)
		publisher := new(MockEventPublisher)
		svc := newGradingService(attemptRepo, paperRepo, new(MockSourceRepository), new(MockChatModel), publisher)

		attemptRepo.On("GetAttemptByID", mock.Anything, "a1").Return(submittedAttempt("a1"), nil)
		paperRepo.On("GetQuestionsByPaper", mock.Anything, "p1").Return([]*domain.Question{
			mcqQuestion("q1", "A", "goroutines"),
			mcqQuestion("q2", "B", "channels"),
		}, nil)
		attemptRepo.On("GetAnswersByAttempt", mock.Anything, "a1").Return([]*domain.Answer{
			{AttemptID: "a1", QuestionID: "q1", AnswerOptionID: "a"}, // case-insensitive match
			{AttemptID: "a1", QuestionID: "q2", AnswerOptionID: "C"},
		}, nil)
		paperRepo.On("GetCitationsByQuestion", mock.Anything, mock.Anything).
			Return([]*domain.QuestionCitation{}, nil)

		grades := map[string]*domain.Grade{}
		attemptRepo.On("UpsertGrade", mock.Anything, mock.AnythingOfType("*domain.Grade")).
			Run(func(args mock.Arguments) {
				g := args.Get(1).(*domain.Grade)
				grades[g.QuestionID] = g
			}).
			Return(nil)
		attemptRepo.On("UpsertWrongItem", mock.Anything, domain.DefaultUserID, "q2", []string{"channels"}).
			Return(nil).Once()
		attemptRepo.On("MarkGraded", mock.Anything, "a1").Return(nil)
		var event domain.StatusEvent
		publisher.On("Publish", domain.TopicAttempt("a1"), mock.Anything).
			Run(func(args mock.Arguments) { event = args.Get(1).(domain.StatusEvent) }).
			Return()

		err := svc.GradeAttempt(context.Background(), "a1")

		require.NoError(t, err)
		require.Len(t, grades, 2)
		assert.Equal(t, 1.0, grades["q1"].Score)
		assert.Equal(t, 0.0, grades["q2"].Score)
		assert.Contains(t, grades["q2"].FeedbackMd, "Incorrect. Correct answer: B.")
		attemptRepo.AssertExpectations(t)
		assert.Equal(t, string(domain.AttemptGraded), event.Status)
	})

	t.Run("redelivery after grading is a no-op", func(t *testing.T) {
		attemptRepo := new(MockAttemptRepository)
		paperRepo := new(MockPaperRepository)
		publisher := new(MockEventPublisher)
		svc := newGradingService(attemptRepo, paperRepo, new(MockSourceRepository), new(MockChatModel), publisher)

		attemptRepo.On("GetAttemptByID", mock.Anything, "a1").
			Return(&domain.Attempt{ID: "a1", Status: domain.AttemptGraded}, nil)

		err := svc.GradeAttempt(context.Background(), "a1")

		require.NoError(t, err)
		attemptRepo.AssertNotCalled(t, "UpsertGrade", mock.Anything, mock.Anything)
		attemptRepo.AssertNotCalled(t, "MarkGraded", mock.Anything, mock.Anything)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("unanswered MCQ counts as wrong", func(t *testing.T) {
		attemptRepo := new(MockAttemptRepository)
		paperRepo := new(MockPaperRepository)
		publisher := new(MockEventPublisher)
		svc := newGradingService(attemptRepo, paperRepo, new(MockSourceRepository), new(MockChatModel), publisher)

		attemptRepo.On("GetAttemptByID", mock.Anything, "a1").Return(submittedAttempt("a1"), nil)
		paperRepo.On("GetQuestionsByPaper", mock.Anything, "p1").
			Return([]*domain.Question{mcqQuestion("q1", "A")}, nil)
		attemptRepo.On("GetAnswersByAttempt", mock.Anything, "a1").Return([]*domain.Answer{}, nil)
		paperRepo.On("GetCitationsByQuestion", mock.Anything, "q1").
			Return([]*domain.QuestionCitation{}, nil)
		var saved *domain.Grade
		attemptRepo.On("UpsertGrade", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Grade) }).
			Return(nil)
		attemptRepo.On("UpsertWrongItem", mock.Anything, domain.DefaultUserID, "q1", mock.Anything).Return(nil)
		attemptRepo.On("MarkGraded", mock.Anything, "a1").Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return()

		err := svc.GradeAttempt(context.Background(), "a1")

		require.NoError(t, err)
		assert.Equal(t, 0.0, saved.Score)
		assert.Equal(t, "", saved.Verdict.Got)
	})

	t.Run("short answer without credential grades zero with an error verdict", func(t *testing.T) {
		attemptRepo := new(MockAttemptRepository)
		paperRepo := new(MockPaperRepository)
		chat := new(MockChatModel)
		publisher := new(MockEventPublisher)
		svc := newGradingService(attemptRepo, paperRepo, new(MockSourceRepository), chat, publisher)

		question := &domain.Question{
			ID:        "q1",
			PaperID:   "p1",
			Type:      domain.QuestionShortAnswer,
			Prompt:    "Explain channels.",
			AnswerKey: domain.AnswerKey{ReferenceAnswer: "Typed conduits."},
			Rubric:    []domain.RubricPoint{{ID: "p1", Points: 3}, {ID: "p2", Points: 2}},
		}
		attemptRepo.On("GetAttemptByID", mock.Anything, "a1").Return(submittedAttempt("a1"), nil)
		paperRepo.On("GetQuestionsByPaper", mock.Anything, "p1").Return([]*domain.Question{question}, nil)
		attemptRepo.On("GetAnswersByAttempt", mock.Anything, "a1").Return([]*domain.Answer{
			{AttemptID: "a1", QuestionID: "q1", AnswerText: "They move values."},
		}, nil)
		paperRepo.On("GetCitationsByQuestion", mock.Anything, "q1").
			Return([]*domain.QuestionCitation{}, nil)
		chat.On("Available").Return(false)
		var saved *domain.Grade
		attemptRepo.On("UpsertGrade", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Grade) }).
			Return(nil)
		attemptRepo.On("UpsertWrongItem", mock.Anything, domain.DefaultUserID, "q1", mock.Anything).Return(nil)
		attemptRepo.On("MarkGraded", mock.Anything, "a1").Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return()

		err := svc.GradeAttempt(context.Background(), "a1")

		require.NoError(t, err)
		assert.Equal(t, 0.0, saved.Score)
		assert.Equal(t, 5.0, saved.MaxScore)
		assert.Equal(t, "OPENAI_API_KEY missing", saved.Verdict.Error)
	})

	t.Run("short answer via the model clamps and backfills", func(t *testing.T) {
		attemptRepo := new(MockAttemptRepository)
		paperRepo := new(MockPaperRepository)
		sourceRepo := new(MockSourceRepository)
		chat := new(MockChatModel)
		publisher := new(MockEventPublisher)
		svc := newGradingService(attemptRepo, paperRepo, sourceRepo, chat, publisher)

		question := &domain.Question{
			ID:        "q1",
			PaperID:   "p1",
			Type:      domain.QuestionShortAnswer,
			Prompt:    "Explain channels.",
			AnswerKey: domain.AnswerKey{ReferenceAnswer: "Typed conduits."},
			Rubric:    []domain.RubricPoint{{ID: "p1", Points: 3, Criteria: "definition"}, {ID: "p2", Points: 2, Criteria: "example"}},
		}
		attemptRepo.On("GetAttemptByID", mock.Anything, "a1").Return(submittedAttempt("a1"), nil)
		paperRepo.On("GetQuestionsByPaper", mock.Anything, "p1").Return([]*domain.Question{question}, nil)
		attemptRepo.On("GetAnswersByAttempt", mock.Anything, "a1").Return([]*domain.Answer{
			{AttemptID: "a1", QuestionID: "q1", AnswerText: "They move values."},
		}, nil)
		paperRepo.On("GetCitationsByQuestion", mock.Anything, "q1").Return([]*domain.QuestionCitation{
			{QuestionID: "q1", ChunkID: "chunk1"},
		}, nil)
		sourceRepo.On("GetChunksByIDs", mock.Anything, []string{"chunk1"}).
			Return([]*domain.Chunk{{ID: "chunk1", Text: "Channels carry values."}}, nil)
		chat.On("Available").Return(true)
		// Score above the rubric total must be clamped down to 5.
		chat.On("ChatJSON", mock.Anything, mock.Anything, mock.Anything, float32(0.1)).
			Return([]byte(`{
				"score": 7, "maxScore": 5,
				"hitPoints": [{"rubricPointId": "p1"}],
				"feedbackMd": "Good definition.",
				"confidence": 0.8,
				"recommendedReviewChunkIds": ["c1", "c9"]
			}`), nil)
		var saved *domain.Grade
		attemptRepo.On("UpsertGrade", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Grade) }).
			Return(nil)
		attemptRepo.On("MarkGraded", mock.Anything, "a1").Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return()

		err := svc.GradeAttempt(context.Background(), "a1")

		require.NoError(t, err)
		assert.Equal(t, 5.0, saved.Score)
		assert.Equal(t, "Typed conduits.", saved.Verdict.SuggestedAnswer)
		// Unknown review refs are dropped; c1 resolves to the real chunk id.
		assert.Equal(t, []string{"chunk1"}, saved.Verdict.RecommendedReviewChunkIDs)
		// Full score: no wrong item recorded.
		attemptRepo.AssertNotCalled(t, "UpsertWrongItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
