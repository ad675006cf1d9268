package service

import (
	"context"
	"time"

	"examcraft/internal/domain"
	"examcraft/internal/util"
)

// AttemptDetail bundles an attempt with the paper and questions it runs
// against. Questions are answer-key-free: this view is handed to a learner
// mid-attempt.
type AttemptDetail struct {
	Attempt   *domain.Attempt
	Paper     *domain.Paper
	Questions []*domain.Question
	Answers   []*domain.Answer
}

// AttemptResult is the graded view: totals plus the full per-question
// breakdown, answer keys included.
type AttemptResult struct {
	Attempt   *domain.Attempt
	Score     float64
	MaxScore  float64
	Questions []*domain.Question
	Answers   []*domain.Answer
	Grades    []*domain.Grade
}

// SubmittedAnswer is one answer in a submission request.
type SubmittedAnswer struct {
	QuestionID     string
	AnswerText     string
	AnswerOptionID string
}

// AttemptService handles attempt creation, submission and result reads.
// Grading runs on the worker; submission only persists answers and enqueues.
type AttemptService struct {
	attemptRepo domain.AttemptRepository
	paperRepo   domain.PaperRepository
	txManager   domain.TransactionManager
	queue       domain.JobQueue
}

func NewAttemptService(
	attemptRepo domain.AttemptRepository,
	paperRepo domain.PaperRepository,
	txManager domain.TransactionManager,
	queue domain.JobQueue,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		paperRepo:   paperRepo,
		txManager:   txManager,
		queue:       queue,
	}
}

// CreateAttempt starts a new pass at a READY paper.
func (s *AttemptService) CreateAttempt(ctx context.Context, paperID string) (*domain.Attempt, error) {
	paper, err := s.paperRepo.GetPaperByID(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, domain.NewPaperNotFoundError(paperID)
	}
	if paper.Status != domain.PaperReady {
		return nil, domain.NewError(domain.CodePaperNotReady,
			"Paper is not READY yet. Current status: "+string(paper.Status), nil)
	}

	attempt := &domain.Attempt{
		ID:        util.NewULID(),
		PaperID:   paperID,
		UserID:    domain.DefaultUserID,
		Status:    domain.AttemptInProgress,
		StartedAt: time.Now(),
	}
	if err := s.attemptRepo.SaveAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// GetAttempt returns the attempt with its paper, answer-key-free questions
// and any answers saved so far.
func (s *AttemptService) GetAttempt(ctx context.Context, id string) (*AttemptDetail, error) {
	attempt, err := s.attemptRepo.GetAttemptByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domain.NewAttemptNotFoundError(id)
	}

	paper, err := s.paperRepo.GetPaperByID(ctx, attempt.PaperID)
	if err != nil {
		return nil, err
	}
	questions, err := s.paperRepo.GetQuestionsByPaper(ctx, attempt.PaperID)
	if err != nil {
		return nil, err
	}
	answers, err := s.attemptRepo.GetAnswersByAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AttemptDetail{
		Attempt:   attempt,
		Paper:     paper,
		Questions: stripAnswerKeys(questions),
		Answers:   answers,
	}, nil
}

// SubmitAttempt upserts the answers, flips the attempt to SUBMITTED (clearing
// any previous grading error) and enqueues grade_attempt. The job is enqueued
// only after the transaction commits. Submitting twice is a conflict.
func (s *AttemptService) SubmitAttempt(ctx context.Context, id string, answers []SubmittedAnswer) (*domain.Attempt, error) {
	attempt, err := s.attemptRepo.GetAttemptByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domain.NewAttemptNotFoundError(id)
	}
	if !attempt.CanSubmit() {
		return nil, domain.NewConflictError(
			"Attempt already submitted. Current status: " + string(attempt.Status))
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, a := range answers {
			answer := &domain.Answer{
				AttemptID:      id,
				QuestionID:     a.QuestionID,
				AnswerText:     a.AnswerText,
				AnswerOptionID: a.AnswerOptionID,
			}
			if err := s.attemptRepo.UpsertAnswer(txCtx, answer); err != nil {
				return err
			}
		}
		return s.attemptRepo.MarkSubmitted(txCtx, id)
	})
	if err != nil {
		return nil, err
	}

	err = s.queue.Enqueue(ctx, domain.JobGradeAttempt, domain.GradeAttemptPayload{AttemptID: id})
	if err != nil {
		return nil, err
	}

	attempt.Status = domain.AttemptSubmitted
	attempt.Error = ""
	return attempt, nil
}

// GetResult returns the graded breakdown. Reading a result before submission
// is a conflict; reading one between submission and grading simply shows no
// grades yet.
func (s *AttemptService) GetResult(ctx context.Context, id string) (*AttemptResult, error) {
	attempt, err := s.attemptRepo.GetAttemptByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domain.NewAttemptNotFoundError(id)
	}
	if attempt.Status == domain.AttemptInProgress {
		return nil, domain.NewConflictError("Attempt has not been submitted yet.")
	}

	questions, err := s.paperRepo.GetQuestionsByPaper(ctx, attempt.PaperID)
	if err != nil {
		return nil, err
	}
	answers, err := s.attemptRepo.GetAnswersByAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	grades, err := s.attemptRepo.GetGradesByAttempt(ctx, id)
	if err != nil {
		return nil, err
	}

	var score, maxScore float64
	for _, g := range grades {
		score += g.Score
	}
	for _, q := range questions {
		maxScore += q.MaxScore()
	}
	return &AttemptResult{
		Attempt:   attempt,
		Score:     score,
		MaxScore:  maxScore,
		Questions: questions,
		Answers:   answers,
		Grades:    grades,
	}, nil
}

func (s *AttemptService) ListAttempts(ctx context.Context, limit int) ([]*domain.AttemptSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.attemptRepo.ListAttempts(ctx, domain.DefaultUserID, limit)
}

func (s *AttemptService) ListWrongItems(ctx context.Context, limit int) ([]*domain.WrongItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.attemptRepo.ListWrongItems(ctx, domain.DefaultUserID, limit)
}

func (s *AttemptService) DeleteAttempt(ctx context.Context, id string) error {
	return s.attemptRepo.DeleteAttempt(ctx, id)
}

// GetAttemptSnapshot is the cheap status read used to seed event streams.
func (s *AttemptService) GetAttemptSnapshot(ctx context.Context, id string) (*domain.Attempt, error) {
	attempt, err := s.attemptRepo.GetAttemptByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domain.NewAttemptNotFoundError(id)
	}
	return attempt, nil
}

// stripAnswerKeys drops everything that would let a learner cheat while the
// attempt is still open.
func stripAnswerKeys(questions []*domain.Question) []*domain.Question {
	stripped := make([]*domain.Question, 0, len(questions))
	for _, q := range questions {
		clone := *q
		clone.AnswerKey = domain.AnswerKey{}
		clone.Rubric = nil
		stripped = append(stripped, &clone)
	}
	return stripped
}
