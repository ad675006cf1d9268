package handler

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the whole API under /api.
func RegisterRoutes(app *fiber.App, sources *SourceHandler, papers *PaperHandler, attempts *AttemptHandler) {
	api := app.Group("/api")

	api.Post("/sources", sources.CreateSource)
	api.Get("/sources", sources.ListSources)
	api.Get("/sources/:id", sources.GetSource)
	api.Get("/sources/:id/preview", sources.PreviewSource)
	api.Get("/sources/:id/events", sources.SourceEvents)
	api.Get("/sources/:id/papers", papers.ListPapers)
	api.Delete("/sources/:id", sources.DeleteSource)

	api.Post("/papers", papers.CreatePaper)
	api.Get("/papers/:id", papers.GetPaper)
	api.Get("/papers/:id/questions", papers.GetPaperQuestions)
	api.Get("/papers/:id/events", papers.PaperEvents)
	api.Delete("/papers/:id", papers.DeletePaper)

	api.Post("/attempts", attempts.CreateAttempt)
	api.Get("/attempts", attempts.ListAttempts)
	api.Get("/attempts/:id", attempts.GetAttempt)
	api.Post("/attempts/:id/submit", attempts.SubmitAttempt)
	api.Get("/attempts/:id/result", attempts.GetResult)
	api.Get("/attempts/:id/events", attempts.AttemptEvents)
	api.Delete("/attempts/:id", attempts.DeleteAttempt)

	api.Get("/wrong-items", attempts.ListWrongItems)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
}
