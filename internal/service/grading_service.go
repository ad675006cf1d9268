package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"examcraft/internal/adapter/llm"
	"examcraft/internal/config"
	"examcraft/internal/domain"
	"examcraft/internal/logger"
	"examcraft/internal/util"
)

// GradingService grades a submitted attempt: MCQ deterministically, short
// answers through the chat model. Backs the grade_attempt job.
type GradingService struct {
	attemptRepo domain.AttemptRepository
	paperRepo   domain.PaperRepository
	sourceRepo  domain.SourceRepository
	txManager   domain.TransactionManager
	chat        domain.ChatModel
	publisher   domain.EventPublisher
	cfg         *config.Config
}

func NewGradingService(
	attemptRepo domain.AttemptRepository,
	paperRepo domain.PaperRepository,
	sourceRepo domain.SourceRepository,
	txManager domain.TransactionManager,
	chat domain.ChatModel,
	publisher domain.EventPublisher,
	cfg *config.Config,
) *GradingService {
	return &GradingService{
		attemptRepo: attemptRepo,
		paperRepo:   paperRepo,
		sourceRepo:  sourceRepo,
		txManager:   txManager,
		chat:        chat,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// gradeResult pairs the grade with the wrong-item inputs.
type gradeResult struct {
	grade   *domain.Grade
	isWrong bool
	tags    []string
}

// GradeAttempt grades every question, then persists all grades, the
// wrong-item aggregates and the GRADED transition in one transaction.
// An attempt that is not SUBMITTED is skipped: redelivery after a
// completed run is a no-op.
func (s *GradingService) GradeAttempt(ctx context.Context, attemptID string) error {
	log := logger.Get().With(zap.String("attempt_id", attemptID))

	attempt, err := s.attemptRepo.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt == nil {
		return domain.NewAttemptNotFoundError(attemptID)
	}
	if attempt.Status != domain.AttemptSubmitted {
		log.Info("attempt not in SUBMITTED state, skipping grading",
			zap.String("status", string(attempt.Status)))
		return nil
	}

	questions, err := s.paperRepo.GetQuestionsByPaper(ctx, attempt.PaperID)
	if err != nil {
		return err
	}
	answers, err := s.attemptRepo.GetAnswersByAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	answerByQuestion := make(map[string]*domain.Answer, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a
	}

	results := make([]gradeResult, 0, len(questions))
	for _, q := range questions {
		citations, err := s.paperRepo.GetCitationsByQuestion(ctx, q.ID)
		if err != nil {
			return err
		}
		citationChunkIDs := make([]string, len(citations))
		for i, c := range citations {
			citationChunkIDs[i] = c.ChunkID
		}

		var result gradeResult
		if q.Type == domain.QuestionMCQ {
			result = gradeMCQ(attemptID, q, answerByQuestion[q.ID], citationChunkIDs)
		} else {
			result, err = s.gradeShortAnswer(ctx, attemptID, q, answerByQuestion[q.ID], citationChunkIDs)
			if err != nil {
				return err
			}
		}
		results = append(results, result)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, r := range results {
			if err := s.attemptRepo.UpsertGrade(txCtx, r.grade); err != nil {
				return err
			}
			if r.isWrong {
				if err := s.attemptRepo.UpsertWrongItem(txCtx, attempt.UserID, r.grade.QuestionID, r.tags); err != nil {
					return err
				}
			}
		}
		return s.attemptRepo.MarkGraded(txCtx, attemptID)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(domain.TopicAttempt(attemptID), domain.StatusEvent{
		Type: "attempt", ID: attemptID, Status: string(domain.AttemptGraded),
	})
	return nil
}

// gradeMCQ compares option ids case-insensitively. Unanswered counts as
// wrong, not as an error.
func gradeMCQ(attemptID string, q *domain.Question, answer *domain.Answer, citationChunkIDs []string) gradeResult {
	expected := strings.ToUpper(q.AnswerKey.CorrectOptionID)
	got := ""
	if answer != nil {
		got = strings.ToUpper(answer.AnswerOptionID)
	}
	isCorrect := expected != "" && got == expected

	var feedback strings.Builder
	if isCorrect {
		feedback.WriteString("Correct.")
	} else {
		shown := expected
		if shown == "" {
			shown = "(missing)"
		}
		feedback.WriteString("Incorrect. Correct answer: " + shown + ".")
	}
	if q.AnswerKey.Rationale != "" {
		feedback.WriteString("\n\nExplanation: " + q.AnswerKey.Rationale)
	}

	score := 0.0
	if isCorrect {
		score = 1.0
	}
	confidence := 1.0
	return gradeResult{
		grade: &domain.Grade{
			AttemptID:  attemptID,
			QuestionID: q.ID,
			Score:      score,
			MaxScore:   1,
			Verdict: domain.GradeVerdict{
				Correct:  &isCorrect,
				Expected: expected,
				Got:      got,
			},
			FeedbackMd: feedback.String(),
			Citations:  citationChunkIDs,
			Confidence: &confidence,
		},
		isWrong: !isCorrect,
		tags:    q.Tags,
	}
}

func (s *GradingService) gradeShortAnswer(
	ctx context.Context,
	attemptID string,
	q *domain.Question,
	answer *domain.Answer,
	citationChunkIDs []string,
) (gradeResult, error) {
	maxScore := domain.SumRubric(q.Rubric)

	if !s.chat.Available() {
		confidence := 0.0
		return gradeResult{
			grade: &domain.Grade{
				AttemptID:  attemptID,
				QuestionID: q.ID,
				Score:      0,
				MaxScore:   maxScore,
				Verdict:    domain.GradeVerdict{Error: "OPENAI_API_KEY missing"},
				FeedbackMd: "Grading unavailable: OPENAI_API_KEY is not configured.",
				Citations:  citationChunkIDs,
				Confidence: &confidence,
			},
			isWrong: true,
			tags:    q.Tags,
		}, nil
	}

	evidenceCap := s.cfg.Grading.EvidenceTextCap
	if evidenceCap <= 0 {
		evidenceCap = 1200
	}
	chunks, err := s.sourceRepo.GetChunksByIDs(ctx, citationChunkIDs)
	if err != nil {
		return gradeResult{}, err
	}
	type refChunk struct {
		Ref  string `json:"ref"`
		Text string `json:"text"`
	}
	refs := make([]refChunk, len(chunks))
	refToChunkID := make(map[string]string, len(chunks))
	for i, c := range chunks {
		ref := "c" + strconv.Itoa(i+1)
		refs[i] = refChunk{Ref: ref, Text: util.Truncate(c.Text, evidenceCap)}
		refToChunkID[ref] = c.ID
	}

	studentAnswer := ""
	if answer != nil {
		studentAnswer = answer.AnswerText
	}
	input := struct {
		Prompt          string               `json:"prompt"`
		ReferenceAnswer string               `json:"referenceAnswer"`
		Rubric          []domain.RubricPoint `json:"rubric"`
		MaxScore        float64              `json:"maxScore"`
		StudentAnswer   string               `json:"studentAnswer"`
		ReferenceChunks []refChunk           `json:"referenceChunks"`
	}{
		Prompt:          q.Prompt,
		ReferenceAnswer: q.AnswerKey.ReferenceAnswer,
		Rubric:          q.Rubric,
		MaxScore:        maxScore,
		StudentAnswer:   studentAnswer,
		ReferenceChunks: refs,
	}
	inputJSON, _ := json.MarshalIndent(input, "", "  ")

	raw, err := s.chat.ChatJSON(ctx, gradingSystemPrompt, gradingInstructions(maxScore)+"\n\nINPUT_JSON:\n"+string(inputJSON)+"\n", 0.1)
	if err != nil {
		return gradeResult{}, err
	}
	payload, err := llm.ParseGradePayload(raw)
	if err != nil {
		return gradeResult{}, err
	}

	// The model's arithmetic is not trusted: clamp into [0, maxScore].
	score := payload.Score
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	hitIDs := make(map[string]bool, len(payload.HitPoints))
	for _, h := range payload.HitPoints {
		if h.RubricPointID != "" {
			hitIDs[h.RubricPointID] = true
		}
	}

	missingPoints := payload.MissingPoints
	if len(missingPoints) == 0 && score < maxScore {
		for _, p := range q.Rubric {
			if !hitIDs[p.ID] {
				missingPoints = append(missingPoints, fmt.Sprintf("%s: %s", p.ID, p.Criteria))
			}
		}
	}

	suggestions := payload.ActionableSuggestions
	if len(suggestions) == 0 {
		if len(missingPoints) > 6 {
			suggestions = missingPoints[:6]
		} else {
			suggestions = missingPoints
		}
	}

	suggestedAnswer := strings.TrimSpace(payload.SuggestedAnswer)
	if suggestedAnswer == "" {
		suggestedAnswer = strings.TrimSpace(q.AnswerKey.ReferenceAnswer)
	}

	reviewChunkIDs := make([]string, 0, len(payload.RecommendedReviewChunkIDs))
	for _, ref := range payload.RecommendedReviewChunkIDs {
		if id, ok := refToChunkID[ref]; ok {
			reviewChunkIDs = append(reviewChunkIDs, id)
		}
	}

	return gradeResult{
		grade: &domain.Grade{
			AttemptID:  attemptID,
			QuestionID: q.ID,
			Score:      score,
			MaxScore:   maxScore,
			Verdict: domain.GradeVerdict{
				HitPoints:                 payload.HitPoints,
				MissingPoints:             missingPoints,
				Misconceptions:            payload.Misconceptions,
				ActionableSuggestions:     suggestions,
				SuggestedAnswer:           suggestedAnswer,
				RecommendedReviewChunkIDs: reviewChunkIDs,
			},
			FeedbackMd: payload.FeedbackMd,
			Citations:  citationChunkIDs,
			Confidence: payload.Confidence,
		},
		isWrong: score < maxScore,
		tags:    q.Tags,
	}, nil
}

const gradingSystemPrompt = "You are a strict exam grader AND a helpful tutor.\n" +
	"Only use the provided reference chunks as evidence (do not use outside knowledge).\n" +
	"Grade by rubric points.\n" +
	"Be concrete: point to evidence and include chunk refs like (c1).\n" +
	"Return JSON only."

func gradingInstructions(maxScore float64) string {
	return strings.Join([]string{
		"Grade the studentAnswer based on the rubric and referenceChunks in the input JSON.",
		"",
		"You MUST output a JSON object with EXACTLY these keys:",
		"- score (number)",
		"- maxScore (number)",
		"- hitPoints (array of { rubricPointId, comment })",
		"- missingPoints (array of strings)",
		"- misconceptions (array of strings)",
		"- actionableSuggestions (array of strings)",
		"- suggestedAnswer (string)",
		"- feedbackMd (string, markdown)",
		"- recommendedReviewChunkIds (array of chunk refs like c1,c2...)",
		"- confidence (number between 0 and 1)",
		"",
		"Rules:",
		fmt.Sprintf("- score must be between 0 and maxScore (maxScore=%v).", maxScore),
		"- Use the same language as the question prompt.",
		"- hitPoints: include 1+ items when score > 0; each comment should mention what the student did right and cite evidence (c#).",
		"- missingPoints: when score < maxScore, include 1+ items; each item should start with the rubric id like `p2:` and explain what's missing + how to fix it, citing evidence (c#).",
		"- misconceptions: list specific misunderstandings (if none, return empty array).",
		"- actionableSuggestions: 3-6 concrete next steps the student can do, each should cite evidence (c#).",
		"- suggestedAnswer: a short corrected answer (1-4 sentences) that would get full points; must be supported by referenceChunks.",
		"- recommendedReviewChunkIds: pick 1-3 refs that best support the missingPoints (empty only if full score).",
		"- feedbackMd: write like a teacher. Include sections:",
		"  - Overall (1-2 sentences)",
		"  - What you did well (bullets)",
		"  - What to improve (bullets)",
		"  - Suggested corrected answer",
		"  - Evidence to review (list chunk refs)",
		"Return JSON only.",
	}, "\n")
}
