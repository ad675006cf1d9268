package handler

import (
	"github.com/gofiber/fiber/v2"

	"examcraft/internal/domain"
	"examcraft/internal/dto"
	"examcraft/internal/service"
	"examcraft/internal/validation"
)

// PaperHandler handles paper generation and read requests.
type PaperHandler struct {
	papers     *service.PaperService
	subscriber domain.EventSubscriber
	validator  *validation.Validator
}

func NewPaperHandler(papers *service.PaperService, subscriber domain.EventSubscriber) *PaperHandler {
	return &PaperHandler{
		papers:     papers,
		subscriber: subscriber,
		validator:  validation.NewValidator(),
	}
}

// CreatePaper handles POST /api/papers. Generation runs asynchronously; the
// response is the DRAFT paper.
func (h *PaperHandler) CreatePaper(c *fiber.Ctx) error {
	var req dto.CreatePaperRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}
	if errs := h.validator.ValidateCreatePaper(&req); len(errs) > 0 {
		return errs
	}

	paper, err := h.papers.CreatePaper(c.Context(), req.SourceID, req.Title, req.Config)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     paper.ID,
		"status": string(paper.Status),
	})
}

// GetPaper handles GET /api/papers/:id.
func (h *PaperHandler) GetPaper(c *fiber.Ctx) error {
	paper, err := h.papers.GetPaper(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.ToPaperResponse(paper))
}

// GetPaperQuestions handles GET /api/papers/:id/questions. Answer keys stay
// on the server; this is the view used to take the exam.
func (h *PaperHandler) GetPaperQuestions(c *fiber.Ctx) error {
	paper, err := h.papers.GetPaper(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	questions, _, err := h.papers.GetPaperQuestions(c.Context(), paper.ID)
	if err != nil {
		return err
	}

	responses := make([]dto.QuestionResponse, 0, len(questions))
	for _, q := range questions {
		responses = append(responses, dto.ToQuestionResponse(q))
	}
	return c.JSON(fiber.Map{"questions": responses})
}

// ListPapers handles GET /api/sources/:id/papers.
func (h *PaperHandler) ListPapers(c *fiber.Ctx) error {
	papers, err := h.papers.ListPapersBySource(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	responses := make([]dto.PaperResponse, 0, len(papers))
	for _, p := range papers {
		responses = append(responses, dto.ToPaperResponse(p))
	}
	return c.JSON(fiber.Map{"papers": responses})
}

// DeletePaper handles DELETE /api/papers/:id.
func (h *PaperHandler) DeletePaper(c *fiber.Ctx) error {
	if err := h.papers.DeletePaper(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PaperEvents handles GET /api/papers/:id/events: SSE status stream.
func (h *PaperHandler) PaperEvents(c *fiber.Ctx) error {
	id := c.Params("id")
	paper, err := h.papers.GetPaperSnapshot(c.Context(), id)
	if err != nil {
		return err
	}

	snapshot := domain.StatusEvent{
		Type:   "paper",
		ID:     id,
		Status: string(paper.Status),
		Error:  paper.Error,
	}
	return streamEvents(c, h.subscriber, domain.TopicPaper(id), snapshot, func(raw string) interface{} {
		return fiber.Map{"type": "paper", "id": id, "raw": raw}
	})
}
