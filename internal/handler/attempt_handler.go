package handler

import (
	"github.com/gofiber/fiber/v2"

	"examcraft/internal/domain"
	"examcraft/internal/dto"
	"examcraft/internal/service"
	"examcraft/internal/validation"
)

// AttemptHandler handles the attempt lifecycle: create, take, submit, result.
type AttemptHandler struct {
	attempts   *service.AttemptService
	subscriber domain.EventSubscriber
	validator  *validation.Validator
}

func NewAttemptHandler(attempts *service.AttemptService, subscriber domain.EventSubscriber) *AttemptHandler {
	return &AttemptHandler{
		attempts:   attempts,
		subscriber: subscriber,
		validator:  validation.NewValidator(),
	}
}

// CreateAttempt handles POST /api/attempts.
func (h *AttemptHandler) CreateAttempt(c *fiber.Ctx) error {
	var req dto.CreateAttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}
	if errs := h.validator.ValidateCreateAttempt(&req); len(errs) > 0 {
		return errs
	}

	attempt, err := h.attempts.CreateAttempt(c.Context(), req.PaperID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     attempt.ID,
		"status": string(attempt.Status),
	})
}

// ListAttempts handles GET /api/attempts.
func (h *AttemptHandler) ListAttempts(c *fiber.Ctx) error {
	summaries, err := h.attempts.ListAttempts(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return err
	}

	responses := make([]dto.AttemptSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		responses = append(responses, dto.AttemptSummaryResponse{
			AttemptResponse: dto.ToAttemptResponse(&s.Attempt),
			PaperTitle:      s.PaperTitle,
			TotalQuestions:  s.TotalQuestions,
			GradedQuestions: s.GradedQuestions,
			Score:           s.Score,
			MaxScore:        s.MaxScore,
		})
	}
	return c.JSON(fiber.Map{"attempts": responses})
}

// GetAttempt handles GET /api/attempts/:id. Questions come without answer
// keys: this is the view used while the attempt is open.
func (h *AttemptHandler) GetAttempt(c *fiber.Ctx) error {
	detail, err := h.attempts.GetAttempt(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	resp := dto.AttemptDetailResponse{
		AttemptResponse: dto.ToAttemptResponse(detail.Attempt),
		Paper: dto.AttemptPaperResponse{
			ID:     detail.Paper.ID,
			Title:  detail.Paper.Title,
			Status: string(detail.Paper.Status),
		},
		Questions: make([]dto.QuestionResponse, 0, len(detail.Questions)),
		Answers:   make([]dto.AnswerResponse, 0, len(detail.Answers)),
	}
	for _, q := range detail.Questions {
		resp.Questions = append(resp.Questions, dto.ToQuestionResponse(q))
	}
	for _, a := range detail.Answers {
		resp.Answers = append(resp.Answers, dto.ToAnswerResponse(a))
	}
	return c.JSON(resp)
}

// SubmitAttempt handles POST /api/attempts/:id/submit.
func (h *AttemptHandler) SubmitAttempt(c *fiber.Ctx) error {
	var req dto.SubmitAttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}
	if errs := h.validator.ValidateSubmitAttempt(&req); len(errs) > 0 {
		return errs
	}

	answers := make([]service.SubmittedAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, service.SubmittedAnswer{
			QuestionID:     a.QuestionID,
			AnswerText:     a.Text,
			AnswerOptionID: a.OptionID,
		})
	}

	attempt, err := h.attempts.SubmitAttempt(c.Context(), c.Params("id"), answers)
	if err != nil {
		return err
	}
	return c.JSON(dto.SubmitAttemptResponse{
		ID:     attempt.ID,
		Status: string(attempt.Status),
	})
}

// GetResult handles GET /api/attempts/:id/result: the graded breakdown,
// answer keys included.
func (h *AttemptHandler) GetResult(c *fiber.Ctx) error {
	result, err := h.attempts.GetResult(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	resp := dto.AttemptResultResponse{
		AttemptResponse: dto.ToAttemptResponse(result.Attempt),
		Totals: dto.AttemptTotalsResponse{
			Score:    result.Score,
			MaxScore: result.MaxScore,
		},
		Questions: make([]dto.ResultQuestionResponse, 0, len(result.Questions)),
		Answers:   make([]dto.AnswerResponse, 0, len(result.Answers)),
		Grades:    make([]dto.GradeResponse, 0, len(result.Grades)),
	}
	for _, q := range result.Questions {
		resp.Questions = append(resp.Questions, dto.ResultQuestionResponse{
			QuestionResponse: dto.ToQuestionResponse(q),
			AnswerKey:        q.AnswerKey,
			Rubric:           q.Rubric,
		})
	}
	for _, a := range result.Answers {
		resp.Answers = append(resp.Answers, dto.ToAnswerResponse(a))
	}
	for _, g := range result.Grades {
		resp.Grades = append(resp.Grades, dto.ToGradeResponse(g))
	}
	return c.JSON(resp)
}

// DeleteAttempt handles DELETE /api/attempts/:id.
func (h *AttemptHandler) DeleteAttempt(c *fiber.Ctx) error {
	if err := h.attempts.DeleteAttempt(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListWrongItems handles GET /api/wrong-items.
func (h *AttemptHandler) ListWrongItems(c *fiber.Ctx) error {
	items, err := h.attempts.ListWrongItems(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return err
	}

	responses := make([]dto.WrongItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.WrongItemResponse{
			QuestionID:  item.QuestionID,
			LastWrongAt: item.LastWrongAt,
			WrongCount:  item.WrongCount,
			WeakTags:    item.WeakTags,
		})
	}
	return c.JSON(fiber.Map{"wrongItems": responses})
}

// AttemptEvents handles GET /api/attempts/:id/events: SSE status stream.
func (h *AttemptHandler) AttemptEvents(c *fiber.Ctx) error {
	id := c.Params("id")
	attempt, err := h.attempts.GetAttemptSnapshot(c.Context(), id)
	if err != nil {
		return err
	}

	snapshot := domain.StatusEvent{
		Type:   "attempt",
		ID:     id,
		Status: string(attempt.Status),
		Error:  attempt.Error,
	}
	return streamEvents(c, h.subscriber, domain.TopicAttempt(id), snapshot, func(raw string) interface{} {
		return fiber.Map{"type": "attempt", "id": id, "raw": raw}
	})
}
