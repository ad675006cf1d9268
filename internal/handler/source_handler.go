// Package handler exposes the HTTP API. Handlers return domain errors and
// rely on the error middleware for status mapping.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"examcraft/internal/domain"
	"examcraft/internal/dto"
	"examcraft/internal/service"
	"examcraft/internal/validation"
)

// SourceHandler handles source import and read requests.
type SourceHandler struct {
	sources    *service.SourceService
	subscriber domain.EventSubscriber
	validator  *validation.Validator
}

func NewSourceHandler(sources *service.SourceService, subscriber domain.EventSubscriber) *SourceHandler {
	return &SourceHandler{
		sources:    sources,
		subscriber: subscriber,
		validator:  validation.NewValidator(),
	}
}

// CreateSource handles POST /api/sources. The request type selects the
// import path; all of them respond 201 with the PROCESSING source.
func (h *SourceHandler) CreateSource(c *fiber.Ctx) error {
	var req dto.CreateSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}
	if errs := h.validator.ValidateCreateSource(&req); len(errs) > 0 {
		return errs
	}

	var (
		source *domain.Source
		err    error
	)
	switch domain.SourceType(req.Type) {
	case domain.SourcePaste:
		source, err = h.sources.CreateTextSource(c.Context(), domain.SourcePaste, req.Title, req.Text)
	case domain.SourceMarkdownUpload:
		source, err = h.sources.CreateTextSource(c.Context(), domain.SourceMarkdownUpload, req.Title, req.Md)
	case domain.SourceURL:
		source, err = h.sources.CreateURLSource(c.Context(), req.Title, req.URL)
	case domain.SourceGithub:
		source, err = h.sources.CreateGithubSource(c.Context(), req.Title, req.URL)
	}
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     source.ID,
		"status": string(source.Status),
	})
}

// ListSources handles GET /api/sources.
func (h *SourceHandler) ListSources(c *fiber.Ctx) error {
	sources, err := h.sources.ListSources(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return err
	}

	responses := make([]dto.SourceResponse, 0, len(sources))
	for _, s := range sources {
		responses = append(responses, dto.ToSourceResponse(s))
	}
	return c.JSON(fiber.Map{"sources": responses})
}

// GetSource handles GET /api/sources/:id.
func (h *SourceHandler) GetSource(c *fiber.Ctx) error {
	detail, err := h.sources.GetSource(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(dto.SourceDetailResponse{
		SourceResponse: dto.ToSourceResponse(detail.Source),
		Counts: dto.SourceCountsResponse{
			Documents: detail.Documents,
			Chunks:    detail.Chunks,
		},
	})
}

// PreviewSource handles GET /api/sources/:id/preview.
func (h *SourceHandler) PreviewSource(c *fiber.Ctx) error {
	previews, err := h.sources.PreviewSource(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	responses := make([]dto.DocumentPreviewResponse, 0, len(previews))
	for _, p := range previews {
		responses = append(responses, dto.DocumentPreviewResponse{
			ID:      p.ID,
			DocType: string(p.DocType),
			URI:     p.URI,
			Meta:    p.Meta,
			Preview: p.Preview,
			Bytes:   p.Bytes,
		})
	}
	return c.JSON(fiber.Map{"documents": responses})
}

// DeleteSource handles DELETE /api/sources/:id.
func (h *SourceHandler) DeleteSource(c *fiber.Ctx) error {
	if err := h.sources.DeleteSource(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SourceEvents handles GET /api/sources/:id/events: SSE status stream.
func (h *SourceHandler) SourceEvents(c *fiber.Ctx) error {
	id := c.Params("id")
	source, err := h.sources.GetSourceSnapshot(c.Context(), id)
	if err != nil {
		return err
	}

	snapshot := domain.StatusEvent{
		Type:   "source",
		ID:     id,
		Status: string(source.Status),
		Error:  source.Error,
	}
	return streamEvents(c, h.subscriber, domain.TopicSource(id), snapshot, func(raw string) interface{} {
		return fiber.Map{"type": "source", "id": id, "raw": raw}
	})
}
